package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// DefaultHandlerTimeout bounds a single handler call
const DefaultHandlerTimeout = 30 * time.Second

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher runs the side effects registered for a request type, at most once
// per (request, effect)
type Dispatcher interface {
	// RegisterEffect adds a side effect for a request type. Keys are unique per type.
	RegisterEffect(requestType, effectKey string, handler Handler) error

	// RegisterEffectInfo is RegisterEffect with a description
	RegisterEffectInfo(info EffectInfo) error

	// Dispatch claims, executes and records every effect of evt.RequestType.
	// Handler failures are recorded in the outcomes, never returned.
	Dispatch(ctx context.Context, evt *event.Event) ([]Outcome, error)

	// Effects returns the effects registered for a request type in registration order
	Effects(requestType string) []EffectInfo

	// Close rejects new dispatches and waits for running ones
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type effectDispatcher struct {
	mu      sync.RWMutex
	effects map[string][]EffectInfo
	records port.SideEffectRepository
	logger  Logger
	timeout time.Duration
	now     func() time.Time

	// running dispatches hold closeMu for reading
	closeMu sync.RWMutex
	closed  bool
}

// Option configures the dispatcher
type Option func(*effectDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *effectDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithHandlerTimeout bounds every handler call
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(d *effectDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithClock overrides the clock used for executed_at
func WithClock(now func() time.Time) Option {
	return func(d *effectDispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a side-effect dispatcher backed by records
func NewDispatcher(records port.SideEffectRepository, opts ...Option) Dispatcher {
	d := &effectDispatcher{
		effects: make(map[string][]EffectInfo),
		records: records,
		logger:  nopLogger{},
		timeout: DefaultHandlerTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *effectDispatcher) RegisterEffect(requestType, effectKey string, handler Handler) error {
	return d.RegisterEffectInfo(EffectInfo{
		RequestType: requestType,
		Key:         effectKey,
		Handler:     handler,
	})
}

func (d *effectDispatcher) RegisterEffectInfo(info EffectInfo) error {
	if info.RequestType == "" || info.Key == "" {
		return fmt.Errorf("%w: request type and effect key are required", workflow.ErrValidation)
	}
	if info.Handler == nil {
		return fmt.Errorf("%w: effect %s/%s has no handler", workflow.ErrValidation, info.RequestType, info.Key)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.effects[info.RequestType] {
		if existing.Key == info.Key {
			return fmt.Errorf("%w: effect %s already registered for %s", workflow.ErrValidation, info.Key, info.RequestType)
		}
	}
	d.effects[info.RequestType] = append(d.effects[info.RequestType], info)

	d.logger.Info("Side effect registered",
		"request_type", info.RequestType,
		"effect_key", info.Key,
	)
	return nil
}

func (d *effectDispatcher) Dispatch(ctx context.Context, evt *event.Event) ([]Outcome, error) {
	if evt == nil {
		return nil, fmt.Errorf("%w: event cannot be nil", workflow.ErrValidation)
	}

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	d.mu.RLock()
	effects := append([]EffectInfo(nil), d.effects[evt.RequestType]...)
	d.mu.RUnlock()

	if len(effects) == 0 {
		return nil, nil
	}

	d.logger.Info("Dispatching side effects",
		"request_id", evt.RequestID,
		"request_type", evt.RequestType,
		"event_id", evt.ID,
		"effect_count", len(effects),
	)

	// bookkeeping must finish even if the caller gives up
	bookCtx := context.WithoutCancel(ctx)

	outcomes := make([]Outcome, 0, len(effects))
	for _, info := range effects {
		outcomes = append(outcomes, d.dispatchOne(bookCtx, evt, info))
	}
	return outcomes, nil
}

func (d *effectDispatcher) dispatchOne(ctx context.Context, evt *event.Event, info EffectInfo) Outcome {
	out := Outcome{EffectKey: info.Key}

	rec, claimed, err := d.records.Claim(ctx, evt.RequestID, info.Key)
	if err != nil {
		d.logger.Error("Failed to claim side effect",
			"request_id", evt.RequestID,
			"effect_key", info.Key,
			"error", err,
		)
		out.Err = fmt.Errorf("claim %s: %w", info.Key, err)
		return out
	}
	if !claimed {
		out.Status = rec.Status
		d.logger.Info("Side effect skipped",
			"request_id", evt.RequestID,
			"effect_key", info.Key,
			"status", rec.Status,
		)
		return out
	}

	handlerCtx, cancel := context.WithTimeout(ctx, d.timeout)
	herr := d.safeExecute(handlerCtx, evt, info)
	cancel()
	out.Executed = true

	if herr != nil {
		out.Status = entity.SideEffectFailed
		out.Err = fmt.Errorf("%w: %s: %v", workflow.ErrSideEffectFailure, info.Key, herr)
		d.logger.Error("Side effect failed",
			"request_id", evt.RequestID,
			"effect_key", info.Key,
			"attempt", rec.Attempts,
			"error", herr,
		)
		if err := d.records.MarkFailed(ctx, evt.RequestID, info.Key, herr.Error()); err != nil {
			d.logger.Error("Failed to record side effect failure",
				"request_id", evt.RequestID,
				"effect_key", info.Key,
				"error", err,
			)
		}
		return out
	}

	out.Status = entity.SideEffectExecuted
	if err := d.records.MarkExecuted(ctx, evt.RequestID, info.Key, d.now()); err != nil {
		out.Err = fmt.Errorf("mark %s executed: %w", info.Key, err)
		d.logger.Error("Failed to record side effect execution",
			"request_id", evt.RequestID,
			"effect_key", info.Key,
			"error", err,
		)
		return out
	}

	d.logger.Info("Side effect executed",
		"request_id", evt.RequestID,
		"effect_key", info.Key,
	)
	return out
}

func (d *effectDispatcher) Effects(requestType string) []EffectInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	effects := d.effects[requestType]
	result := make([]EffectInfo, len(effects))
	for i, e := range effects {
		result[i] = EffectInfo{
			RequestType: e.RequestType,
			Key:         e.Key,
			Description: e.Description,
		}
	}
	return result
}

func (d *effectDispatcher) Close() error {
	d.logger.Info("Closing dispatcher, waiting for running dispatches")

	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true

	d.logger.Info("Dispatcher closed")
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *effectDispatcher) safeExecute(ctx context.Context, evt *event.Event, info EffectInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			d.logger.Error("Handler panic recovered",
				"request_id", evt.RequestID,
				"effect_key", info.Key,
				"panic", r,
			)
		}
	}()

	return info.Handler(ctx, evt)
}
