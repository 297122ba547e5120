package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RetryWorkerConfig holds configuration for the side-effect retry sweep
type RetryWorkerConfig struct {
	Schedule     string // standard 5-field cron expression or @every descriptor
	BatchSize    int
	SweepTimeout time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		Schedule:     "@every 5m",
		BatchSize:    50,
		SweepTimeout: 2 * time.Minute,
	}
}

// SideEffectRetrier re-dispatches a finished request's failed effects
type SideEffectRetrier interface {
	RetrySideEffects(ctx context.Context, id string) ([]dispatcher.Outcome, error)
}

// RetryStats summarizes the sweeps run so far
type RetryStats struct {
	Sweeps    int       `json:"sweeps"`
	Retried   int       `json:"retried"`
	Recovered int       `json:"recovered"`
	Failed    int       `json:"failed"`
	LastSweep time.Time `json:"last_sweep"`
	LastError string    `json:"last_error,omitempty"`
}

// RetryWorker periodically re-runs Failed side-effect records
type RetryWorker struct {
	config  RetryWorkerConfig
	retrier SideEffectRetrier
	records port.SideEffectRepository
	logger  *zap.Logger

	mu        sync.RWMutex
	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	stats     RetryStats
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(config RetryWorkerConfig, retrier SideEffectRetrier, records port.SideEffectRepository, logger *zap.Logger) *RetryWorker {
	defaults := DefaultRetryWorkerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &RetryWorker{
		config:  config,
		retrier: retrier,
		records: records,
		logger:  logger,
	}
}

// Start schedules the sweep
func (w *RetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("retry worker already running")
	}

	cronLogger := &cronLogger{logger: w.logger}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	w.ctx, w.cancel = context.WithCancel(ctx)
	runCtx := w.ctx
	if _, err := c.AddFunc(w.config.Schedule, func() { w.runScheduled(runCtx) }); err != nil {
		w.cancel()
		return fmt.Errorf("invalid retry schedule %q: %w", w.config.Schedule, err)
	}

	c.Start()
	w.cron = c
	w.isRunning = true

	w.logger.Info("RetryWorker started",
		zap.String("schedule", w.config.Schedule),
		zap.Int("batch_size", w.config.BatchSize))
	return nil
}

// Stop cancels any running sweep and waits for it to return
func (w *RetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	c, cancel := w.cron, w.cancel
	w.mu.Unlock()

	cancel()
	<-c.Stop().Done()

	stats := w.Stats()
	w.logger.Info("RetryWorker stopped",
		zap.Int("sweeps", stats.Sweeps),
		zap.Int("recovered", stats.Recovered),
		zap.Int("failed", stats.Failed))
	return nil
}

// Name returns the worker name for identification
func (w *RetryWorker) Name() string {
	return "RetryWorker"
}

// Stats returns a snapshot of sweep counters
func (w *RetryWorker) Stats() RetryStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *RetryWorker) runScheduled(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.config.SweepTimeout)
	defer cancel()
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Error("Retry sweep failed", zap.Error(err))
	}
}

// Sweep retries one batch of requests with failed effects and returns how many
// effects were re-executed successfully
func (w *RetryWorker) Sweep(ctx context.Context) (int, error) {
	ids, err := w.records.ListFailedRequestIDs(ctx, w.config.BatchSize)
	if err != nil {
		w.recordSweep(0, 0, 0, err)
		return 0, fmt.Errorf("failed to list failed side effects: %w", err)
	}

	retried, recovered, failed := 0, 0, 0
	var lastErr error
	for _, id := range ids {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		outcomes, err := w.retrier.RetrySideEffects(ctx, id)
		if err != nil {
			w.logger.Error("Failed to retry side effects",
				zap.String("request_id", id),
				zap.Error(err))
			lastErr = err
			continue
		}

		for _, o := range outcomes {
			if !o.Executed {
				continue
			}
			retried++
			if o.Status == entity.SideEffectExecuted {
				recovered++
			} else {
				failed++
				w.logger.Warn("Side effect failed again",
					zap.String("request_id", id),
					zap.String("effect_key", o.EffectKey),
					zap.Error(o.Err))
			}
		}
	}

	w.recordSweep(retried, recovered, failed, lastErr)
	if len(ids) > 0 {
		w.logger.Info("Retry sweep completed",
			zap.Int("requests", len(ids)),
			zap.Int("retried", retried),
			zap.Int("recovered", recovered))
	}
	return recovered, nil
}

func (w *RetryWorker) recordSweep(retried, recovered, failed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Sweeps++
	w.stats.Retried += retried
	w.stats.Recovered += recovered
	w.stats.Failed += failed
	w.stats.LastSweep = time.Now()
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
