package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) HasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

// mockRecords is an in-memory SideEffectRepository
type mockRecords struct {
	mu       sync.Mutex
	records  map[string]*entity.SideEffectRecord
	claimErr error
}

func newMockRecords() *mockRecords {
	return &mockRecords{records: make(map[string]*entity.SideEffectRecord)}
}

func recordKey(requestID, effectKey string) string {
	return requestID + "/" + effectKey
}

func (m *mockRecords) Get(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recordKey(requestID, effectKey)]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (m *mockRecords) Claim(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, false, m.claimErr
	}

	k := recordKey(requestID, effectKey)
	rec, ok := m.records[k]
	switch {
	case !ok:
		rec = &entity.SideEffectRecord{RequestID: requestID, EffectKey: effectKey, Status: entity.SideEffectPending, Attempts: 1}
		m.records[k] = rec
	case rec.Status == entity.SideEffectFailed:
		rec.Status = entity.SideEffectPending
		rec.Attempts++
	default:
		c := *rec
		return &c, false, nil
	}
	c := *rec
	return &c, true, nil
}

func (m *mockRecords) MarkExecuted(ctx context.Context, requestID, effectKey string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[recordKey(requestID, effectKey)]
	rec.Status = entity.SideEffectExecuted
	rec.ExecutedAt = &at
	rec.LastError = ""
	return nil
}

func (m *mockRecords) MarkFailed(ctx context.Context, requestID, effectKey, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[recordKey(requestID, effectKey)]
	rec.Status = entity.SideEffectFailed
	rec.LastError = lastError
	return nil
}

func (m *mockRecords) ListByRequestID(ctx context.Context, requestID string) ([]*entity.SideEffectRecord, error) {
	return nil, nil
}

func (m *mockRecords) ListFailedRequestIDs(ctx context.Context, limit int) ([]string, error) {
	return nil, nil
}

func approvedEvent(requestID string) *event.Event {
	evt := event.NewEvent(event.TypeRequestApproved, requestID, nil)
	evt.RequestType = "timesheet"
	return evt
}

func TestRegisterEffect(t *testing.T) {
	d := NewDispatcher(newMockRecords())
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	if err := d.RegisterEffect("timesheet", "notify-payroll", noop); err != nil {
		t.Fatalf("RegisterEffect() failed: %v", err)
	}
	if err := d.RegisterEffectInfo(EffectInfo{RequestType: "timesheet", Key: "export-voucher", Description: "xlsx", Handler: noop}); err != nil {
		t.Fatalf("RegisterEffectInfo() failed: %v", err)
	}

	tests := []struct {
		name        string
		requestType string
		key         string
		handler     Handler
	}{
		{"duplicate key", "timesheet", "notify-payroll", noop},
		{"missing type", "", "x", noop},
		{"missing key", "timesheet", "", noop},
		{"nil handler", "timesheet", "y", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.RegisterEffect(tt.requestType, tt.key, tt.handler); !errors.Is(err, workflow.ErrValidation) {
				t.Errorf("RegisterEffect() error = %v, want ErrValidation", err)
			}
		})
	}

	effects := d.Effects("timesheet")
	if len(effects) != 2 || effects[0].Key != "notify-payroll" || effects[1].Description != "xlsx" {
		t.Errorf("Effects() = %+v", effects)
	}
	if effects[0].Handler != nil {
		t.Error("Effects() should not expose handlers")
	}
	if len(d.Effects("leave")) != 0 {
		t.Error("Effects() for an unregistered type should be empty")
	}
}

func TestDispatch_ExecutesOnce(t *testing.T) {
	records := newMockRecords()
	d := NewDispatcher(records)

	var calls atomic.Int32
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	evt := approvedEvent("req-1")
	outcomes, err := d.Dispatch(context.Background(), evt)
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Executed || outcomes[0].Status != entity.SideEffectExecuted {
		t.Fatalf("first Dispatch() outcomes = %+v", outcomes)
	}

	outcomes, _ = d.Dispatch(context.Background(), evt)
	if outcomes[0].Executed || outcomes[0].Status != entity.SideEffectExecuted {
		t.Errorf("second Dispatch() should skip the executed effect, got %+v", outcomes[0])
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}

	rec, _ := records.Get(context.Background(), "req-1", "notify-payroll")
	if rec.ExecutedAt == nil {
		t.Error("executed record should carry executed_at")
	}
}

func TestDispatch_ConcurrentCallsExecuteOnce(t *testing.T) {
	d := NewDispatcher(newMockRecords())

	var calls atomic.Int32
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Dispatch(context.Background(), approvedEvent("req-1"))
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestDispatch_FailureIsRecordedAndRetried(t *testing.T) {
	records := newMockRecords()
	logger := &mockLogger{}
	d := NewDispatcher(records, WithLogger(logger))

	fail := true
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		if fail {
			return errors.New("lark unavailable")
		}
		return nil
	})

	outcomes, err := d.Dispatch(context.Background(), approvedEvent("req-1"))
	if err != nil {
		t.Fatalf("Dispatch() should not return handler errors, got %v", err)
	}
	if !errors.Is(outcomes[0].Err, workflow.ErrSideEffectFailure) || outcomes[0].Status != entity.SideEffectFailed {
		t.Fatalf("outcome = %+v, want recorded failure", outcomes[0])
	}
	if !logger.HasError("Side effect failed") {
		t.Error("expected failure to be logged")
	}

	rec, _ := records.Get(context.Background(), "req-1", "notify-payroll")
	if rec.Status != entity.SideEffectFailed || rec.LastError != "lark unavailable" {
		t.Errorf("record = %+v, want Failed with last error", rec)
	}

	fail = false
	outcomes, _ = d.Dispatch(context.Background(), approvedEvent("req-1"))
	if !outcomes[0].Executed || outcomes[0].Status != entity.SideEffectExecuted {
		t.Errorf("retry outcome = %+v, want executed", outcomes[0])
	}
	rec, _ = records.Get(context.Background(), "req-1", "notify-payroll")
	if rec.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", rec.Attempts)
	}
}

func TestDispatch_PendingRecordIsNotRerun(t *testing.T) {
	records := newMockRecords()
	// a crash between claim and mark leaves the record Pending
	_, _, _ = records.Claim(context.Background(), "req-1", "notify-payroll")

	d := NewDispatcher(records)
	var calls atomic.Int32
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	outcomes, _ := d.Dispatch(context.Background(), approvedEvent("req-1"))
	if outcomes[0].Executed || outcomes[0].Status != entity.SideEffectPending {
		t.Errorf("outcome = %+v, want skipped pending", outcomes[0])
	}
	if calls.Load() != 0 {
		t.Error("pending effect must not be re-run")
	}
}

func TestDispatch_PanicAndTimeout(t *testing.T) {
	records := newMockRecords()
	d := NewDispatcher(records, WithHandlerTimeout(10*time.Millisecond))

	_ = d.RegisterEffect("timesheet", "panics", func(ctx context.Context, evt *event.Event) error {
		panic("boom")
	})
	_ = d.RegisterEffect("timesheet", "slow", func(ctx context.Context, evt *event.Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	var ran atomic.Bool
	_ = d.RegisterEffect("timesheet", "after", func(ctx context.Context, evt *event.Event) error {
		ran.Store(true)
		return nil
	})

	outcomes, err := d.Dispatch(context.Background(), approvedEvent("req-1"))
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	for _, o := range outcomes[:2] {
		if o.Status != entity.SideEffectFailed {
			t.Errorf("%s status = %s, want FAILED", o.EffectKey, o.Status)
		}
	}
	if !ran.Load() {
		t.Error("effects after a failing one should still run")
	}

	rec, _ := records.Get(context.Background(), "req-1", "slow")
	if rec.LastError != context.DeadlineExceeded.Error() {
		t.Errorf("slow LastError = %q", rec.LastError)
	}
}

func TestDispatch_CancelledCallerStillRecords(t *testing.T) {
	records := newMockRecords()
	d := NewDispatcher(records)
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := d.Dispatch(ctx, approvedEvent("req-1"))
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if outcomes[0].Status != entity.SideEffectExecuted {
		t.Errorf("status = %s, want EXECUTED", outcomes[0].Status)
	}
}

func TestDispatch_ClaimError(t *testing.T) {
	records := newMockRecords()
	records.claimErr = fmt.Errorf("database is locked")
	d := NewDispatcher(records)
	_ = d.RegisterEffect("timesheet", "notify-payroll", func(ctx context.Context, evt *event.Event) error {
		t.Error("handler must not run without a claim")
		return nil
	})

	outcomes, err := d.Dispatch(context.Background(), approvedEvent("req-1"))
	if err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if outcomes[0].Err == nil || outcomes[0].Executed {
		t.Errorf("outcome = %+v, want claim error", outcomes[0])
	}
}

func TestDispatch_UnregisteredTypeAndClose(t *testing.T) {
	d := NewDispatcher(newMockRecords())

	outcomes, err := d.Dispatch(context.Background(), approvedEvent("req-1"))
	if err != nil || outcomes != nil {
		t.Errorf("Dispatch() = %v, %v; want nothing to do", outcomes, err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if _, err := d.Dispatch(context.Background(), approvedEvent("req-1")); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch() after Close() error = %v, want ErrClosed", err)
	}
	if _, err := d.Dispatch(context.Background(), nil); !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("Dispatch(nil) error = %v, want ErrValidation", err)
	}
}
