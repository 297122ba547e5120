package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRecords struct {
	failed  []string
	listErr error
	limit   int
}

func (f *fakeRecords) Get(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, error) {
	return nil, nil
}

func (f *fakeRecords) Claim(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, bool, error) {
	return nil, false, errors.New("not used")
}

func (f *fakeRecords) MarkExecuted(ctx context.Context, requestID, effectKey string, at time.Time) error {
	return nil
}

func (f *fakeRecords) MarkFailed(ctx context.Context, requestID, effectKey, lastError string) error {
	return nil
}

func (f *fakeRecords) ListByRequestID(ctx context.Context, requestID string) ([]*entity.SideEffectRecord, error) {
	return nil, nil
}

func (f *fakeRecords) ListFailedRequestIDs(ctx context.Context, limit int) ([]string, error) {
	f.limit = limit
	return f.failed, f.listErr
}

type fakeRetrier struct {
	mu       sync.Mutex
	calls    []string
	outcomes map[string][]dispatcher.Outcome
	errs     map[string]error
}

func (f *fakeRetrier) RetrySideEffects(ctx context.Context, id string) ([]dispatcher.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.outcomes[id], f.errs[id]
}

func TestRetryWorker_Sweep(t *testing.T) {
	records := &fakeRecords{failed: []string{"r1", "r2", "r3"}}
	retrier := &fakeRetrier{
		outcomes: map[string][]dispatcher.Outcome{
			"r1": {
				{EffectKey: "notify-payroll", Status: entity.SideEffectExecuted, Executed: true},
				{EffectKey: "export-voucher", Status: entity.SideEffectExecuted},
			},
			"r3": {
				{EffectKey: "update-cash-book", Status: entity.SideEffectFailed, Executed: true, Err: errors.New("amount missing")},
			},
		},
		errs: map[string]error{"r2": fmt.Errorf("request r2 is locked")},
	}
	w := NewRetryWorker(RetryWorkerConfig{BatchSize: 7}, retrier, records, zap.NewNop())

	recovered, err := w.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, 7, records.limit)
	assert.Equal(t, []string{"r1", "r2", "r3"}, retrier.calls)

	stats := w.Stats()
	assert.Equal(t, 1, stats.Sweeps)
	assert.Equal(t, 2, stats.Retried)
	assert.Equal(t, 1, stats.Recovered)
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, stats.LastError, "r2")
}

func TestRetryWorker_SweepListError(t *testing.T) {
	records := &fakeRecords{listErr: errors.New("database is locked")}
	w := NewRetryWorker(RetryWorkerConfig{}, &fakeRetrier{}, records, zap.NewNop())

	_, err := w.Sweep(context.Background())
	assert.ErrorContains(t, err, "database is locked")
	assert.Equal(t, DefaultRetryWorkerConfig().BatchSize, records.limit)
}

func TestRetryWorker_SweepStopsOnCancelledContext(t *testing.T) {
	retrier := &fakeRetrier{}
	w := NewRetryWorker(RetryWorkerConfig{}, retrier, &fakeRecords{failed: []string{"r1", "r2"}}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, retrier.calls)
	assert.Equal(t, context.Canceled.Error(), w.Stats().LastError)
}

func TestRetryWorker_StartStop(t *testing.T) {
	w := NewRetryWorker(RetryWorkerConfig{Schedule: "@every 1h"}, &fakeRetrier{}, &fakeRecords{}, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, "RetryWorker", w.Name())
}

func TestRetryWorker_InvalidSchedule(t *testing.T) {
	w := NewRetryWorker(RetryWorkerConfig{Schedule: "every now and then"}, &fakeRetrier{}, &fakeRecords{}, zap.NewNop())
	assert.ErrorContains(t, w.Start(context.Background()), "invalid retry schedule")
}
