package workflow

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// SystemActorID is recorded on events raised by background work
const SystemActorID = "system"

const defaultPendingPageSize = 200

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// engineImpl is the concrete implementation of TransitionEngine
type engineImpl struct {
	registry   *domainwf.Registry
	requests   port.RequestRepository
	audits     port.AuditRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	locker     port.Locker
	publisher  port.EventPublisher
	lifecycle  domainwf.LifecycleBuilder
	logger     Logger
	now        func() time.Time
	pageSize   int
}

// EngineOption configures the transition engine
type EngineOption func(*engineImpl)

// WithLocker replaces the in-process per-request lock
func WithLocker(l port.Locker) EngineOption {
	return func(e *engineImpl) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithPublisher publishes an event after every committed transition
func WithPublisher(p port.EventPublisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithPendingPageSize sets the page size used when scanning pending requests
func WithPendingPageSize(n int) EngineOption {
	return func(e *engineImpl) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// NewEngine creates a new transition engine
func NewEngine(
	registry *domainwf.Registry,
	requests port.RequestRepository,
	audits port.AuditRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	opts ...EngineOption,
) TransitionEngine {
	e := &engineImpl{
		registry:   registry,
		requests:   requests,
		audits:     audits,
		txManager:  txManager,
		dispatcher: d,
		locker:     NewKeyedLocker(),
		lifecycle:  BuildApprovalLifecycle(),
		logger:     nopLogger{},
		now:        time.Now,
		pageSize:   defaultPendingPageSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) Submit(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error) {
	return e.transition(ctx, domainwf.ActionSubmit, cmd)
}

func (e *engineImpl) Approve(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error) {
	return e.transition(ctx, domainwf.ActionApprove, cmd)
}

func (e *engineImpl) Reject(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error) {
	return e.transition(ctx, domainwf.ActionReject, cmd)
}

func (e *engineImpl) Disburse(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error) {
	return e.transition(ctx, domainwf.ActionDisburse, cmd)
}

func (e *engineImpl) Cancel(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error) {
	return e.transition(ctx, domainwf.ActionCancel, cmd)
}

// transition runs the shared check-apply-dispatch sequence under the request's lock
func (e *engineImpl) transition(ctx context.Context, action domainwf.Action, cmd Command) (*entity.ApprovalRequest, error) {
	if err := validateCommand(action, cmd); err != nil {
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, cmd.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %s: %w", cmd.RequestID, err)
	}
	defer unlock()

	req, err := e.requests.GetByID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	if req.Version != cmd.ExpectedVersion {
		return nil, fmt.Errorf("%w: request %s is at version %d, expected %d",
			domainwf.ErrConcurrencyConflict, req.ID, req.Version, cmd.ExpectedVersion)
	}

	def, err := e.registry.Get(req.RequestType)
	if err != nil {
		return nil, err
	}

	target, err := e.resolveTarget(ctx, req, def, action)
	if err != nil {
		return nil, err
	}

	stageName := stageNameOf(req, def)

	if !authorized(cmd.Actor, action, req, def) {
		if err := e.recordDenial(ctx, req, cmd.Actor.ID, action, stageName); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: actor %s may not %s request %s",
			domainwf.ErrUnauthorized, cmd.Actor.ID, strings.ToLower(action.String()), req.ID)
	}

	updated := req.Clone()
	updated.Status = target
	updated.Version = req.Version + 1
	updated.UpdatedAt = e.now()
	switch {
	case action == domainwf.ActionSubmit:
		updated.CurrentStageIndex = 0
	case action == domainwf.ActionApprove && target == domainwf.StatusPending:
		updated.CurrentStageIndex = req.CurrentStageIndex + 1
	}

	entry := &entity.AuditEntry{
		RequestID:       req.ID,
		ActorID:         cmd.Actor.ID,
		Action:          action,
		StageNameAtTime: stageName,
		Comment:         strings.TrimSpace(cmd.Comment),
		Timestamp:       updated.UpdatedAt,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requests.UpdateState(txCtx, updated, req.Version); err != nil {
			return err
		}
		return e.audits.Append(txCtx, entry)
	})
	if err != nil {
		e.logger.Error("Transition failed",
			"request_id", req.ID,
			"action", action,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("Request transitioned",
		"request_id", req.ID,
		"request_type", req.RequestType,
		"action", action,
		"from_status", req.Status,
		"to_status", updated.Status,
		"stage_index", updated.CurrentStageIndex,
		"version", updated.Version,
		"actor_id", cmd.Actor.ID,
	)

	eventType := event.TypeForStatus(updated.Status)
	if action == domainwf.ActionSubmit {
		eventType = event.TypeRequestSubmitted
	}
	evt := e.newEvent(eventType, updated, def, cmd.Actor.ID)

	// side effects complete before the lock is released
	if updated.Status.IsSuccess() && def.DispatchesOnCompletion() {
		e.dispatch(ctx, evt)
	}
	e.publish(ctx, evt)

	return updated, nil
}

// resolveTarget fires the action on a fresh lifecycle machine and returns the landing status
func (e *engineImpl) resolveTarget(ctx context.Context, req *entity.ApprovalRequest, def *domainwf.Definition, action domainwf.Action) (domainwf.Status, error) {
	if !req.Status.IsValid() {
		return "", fmt.Errorf("%w: request %s has unknown status %q", domainwf.ErrInvalidState, req.ID, req.Status)
	}
	if req.Status == domainwf.StatusPending {
		if _, ok := def.StageAt(req.CurrentStageIndex); !ok {
			return "", fmt.Errorf("%w: request %s is on stage %d of %d",
				domainwf.ErrInvalidState, req.ID, req.CurrentStageIndex, len(def.Stages))
		}
	}

	machine := e.lifecycle.Build(req.Status)
	fireCtx := domainwf.WithPosition(ctx, domainwf.PositionOf(def, req.CurrentStageIndex))

	if err := machine.Fire(fireCtx, action); err != nil {
		return "", fmt.Errorf("request %s: %w", req.ID, err)
	}
	if machine.Status() == domainwf.StatusSubmitted {
		if err := machine.Fire(domainwf.WithPosition(ctx, domainwf.PositionOf(def, 0)), domainwf.ActionRoute); err != nil {
			return "", fmt.Errorf("request %s: %w", req.ID, err)
		}
	}

	return machine.Status(), nil
}

// recordDenial commits a GuardDenied audit entry without touching the request
func (e *engineImpl) recordDenial(ctx context.Context, req *entity.ApprovalRequest, actorID string, attempted domainwf.Action, stageName string) error {
	entry := &entity.AuditEntry{
		RequestID:       req.ID,
		ActorID:         actorID,
		Action:          domainwf.ActionGuardDenied,
		StageNameAtTime: stageName,
		Comment:         attempted.String(),
		Timestamp:       e.now(),
	}

	if err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return e.audits.Append(txCtx, entry)
	}); err != nil {
		e.logger.Error("Failed to record guard denial",
			"request_id", req.ID,
			"actor_id", actorID,
			"error", err,
		)
		return fmt.Errorf("failed to record guard denial: %w", err)
	}

	e.logger.Info("Guard denied action",
		"request_id", req.ID,
		"actor_id", actorID,
		"attempted", attempted,
		"stage", stageName,
	)

	if e.publisher != nil {
		evt := event.NewEvent(event.TypeGuardDenied, req.ID, map[string]interface{}{"attempted": attempted.String()})
		evt.RequestType = req.RequestType
		evt.SubjectID = req.SubjectID
		evt.ActorID = actorID
		evt.Status = req.Status.String()
		evt.StageIndex = req.CurrentStageIndex
		evt.StageName = stageName
		evt.Version = req.Version
		e.publish(ctx, evt)
	}
	return nil
}

func (e *engineImpl) dispatch(ctx context.Context, evt *event.Event) []dispatcher.Outcome {
	if e.dispatcher == nil {
		return nil
	}

	outcomes, err := e.dispatcher.Dispatch(ctx, evt)
	if err != nil {
		e.logger.Error("Side effect dispatch failed",
			"request_id", evt.RequestID,
			"error", err,
		)
	}
	return outcomes
}

func (e *engineImpl) publish(ctx context.Context, evt *event.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.logger.Error("Failed to publish event",
			"event_type", evt.Type,
			"request_id", evt.RequestID,
			"error", err,
		)
	}
}

func (e *engineImpl) newEvent(eventType event.Type, req *entity.ApprovalRequest, def *domainwf.Definition, actorID string) *event.Event {
	payload, err := req.PayloadMap()
	if err != nil {
		e.logger.Error("Request payload is not a JSON object",
			"request_id", req.ID,
			"error", err,
		)
		payload = nil
	}

	evt := event.NewEvent(eventType, req.ID, payload)
	evt.RequestType = req.RequestType
	evt.SubjectID = req.SubjectID
	evt.SubmittedBy = req.SubmittedBy
	evt.ActorID = actorID
	evt.Status = req.Status.String()
	evt.StageIndex = req.CurrentStageIndex
	evt.StageName = stageNameOf(req, def)
	evt.Version = req.Version
	return evt
}

func (e *engineImpl) Get(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", domainwf.ErrValidation)
	}
	return e.requests.GetByID(ctx, id)
}

func (e *engineImpl) ListAudit(ctx context.Context, id string) (iter.Seq2[*entity.AuditEntry, error], error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.audits.ListFor(ctx, id), nil
}

func (e *engineImpl) ListPending(ctx context.Context, actor domainwf.Actor) ([]*entity.ApprovalRequest, error) {
	result := make([]*entity.ApprovalRequest, 0)

	var cursor port.RequestCursor
	for {
		page, err := e.requests.ListByStatus(ctx, domainwf.StatusPending, cursor, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending requests: %w", err)
		}

		for _, req := range page {
			def, err := e.registry.Get(req.RequestType)
			if err != nil {
				e.logger.Error("Pending request has no definition",
					"request_id", req.ID,
					"request_type", req.RequestType,
				)
				continue
			}
			stage, ok := def.StageAt(req.CurrentStageIndex)
			if ok && domainwf.CanAct(actor, stage) {
				result = append(result, req)
			}
		}

		if len(page) < e.pageSize {
			return result, nil
		}
		cursor = port.After(page[len(page)-1])
	}
}

func (e *engineImpl) RetrySideEffects(ctx context.Context, id string) ([]dispatcher.Outcome, error) {
	return e.retry(ctx, id, nil)
}

func (e *engineImpl) RetrySideEffectsAs(ctx context.Context, id string, actor domainwf.Actor) ([]dispatcher.Outcome, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("%w: actor id is required", domainwf.ErrValidation)
	}
	return e.retry(ctx, id, &actor)
}

// retry re-dispatches under the request lock. A nil actor is the system sweep.
func (e *engineImpl) retry(ctx context.Context, id string, actor *domainwf.Actor) ([]dispatcher.Outcome, error) {
	unlock, err := e.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock request %s: %w", id, err)
	}
	defer unlock()

	req, err := e.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	def, err := e.registry.Get(req.RequestType)
	if err != nil {
		return nil, err
	}

	if actor != nil {
		stage, ok := def.StageAt(def.LastIndex())
		if !ok || !domainwf.CanAct(*actor, stage) {
			return nil, fmt.Errorf("%w: actor %s may not retry side effects of request %s",
				domainwf.ErrUnauthorized, actor.ID, req.ID)
		}
	}

	if !req.Status.IsSuccess() {
		return nil, fmt.Errorf("%w: request %s is %s", domainwf.ErrInvalidState, req.ID, req.Status)
	}
	if !def.DispatchesOnCompletion() {
		return nil, nil
	}

	return e.dispatch(ctx, e.newEvent(event.TypeForStatus(req.Status), req, def, SystemActorID)), nil
}

func validateCommand(action domainwf.Action, cmd Command) error {
	if cmd.RequestID == "" {
		return fmt.Errorf("%w: request id is required", domainwf.ErrValidation)
	}
	if cmd.Actor.ID == "" {
		return fmt.Errorf("%w: actor id is required", domainwf.ErrValidation)
	}
	if cmd.ExpectedVersion < 0 {
		return fmt.Errorf("%w: expected version must not be negative", domainwf.ErrValidation)
	}
	if action == domainwf.ActionReject && strings.TrimSpace(cmd.Comment) == "" {
		return fmt.Errorf("%w: a comment is required to reject", domainwf.ErrValidation)
	}
	return nil
}

// authorized applies the guard: submitter-only for submit and cancel, the stage's
// role or permission otherwise
func authorized(actor domainwf.Actor, action domainwf.Action, req *entity.ApprovalRequest, def *domainwf.Definition) bool {
	switch action {
	case domainwf.ActionSubmit, domainwf.ActionCancel:
		return actor.ID == req.SubmittedBy
	default:
		stage, ok := def.StageAt(req.CurrentStageIndex)
		return ok && domainwf.CanAct(actor, stage)
	}
}

// stageNameOf returns the current stage name, empty before the request is routed
func stageNameOf(req *entity.ApprovalRequest, def *domainwf.Definition) string {
	if req.Status == domainwf.StatusDraft || req.Status == domainwf.StatusSubmitted {
		return ""
	}
	if stage, ok := def.StageAt(req.CurrentStageIndex); ok {
		return stage.Name
	}
	return ""
}

// Verify interface compliance
var _ TransitionEngine = (*engineImpl)(nil)
