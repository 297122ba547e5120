package workflow

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/application/port"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// Mock implementations

type mockRequestRepo struct {
	mu        sync.Mutex
	requests  map[string]*entity.ApprovalRequest
	gets      atomic.Int32
	lists     int
	afterPage func(call int)
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*entity.ApprovalRequest)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", domainwf.ErrNotFound, id)
	}
	return req.Clone(), nil
}

func (m *mockRequestRepo) GetSuccessor(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	return nil, nil
}

func (m *mockRequestRepo) UpdateState(ctx context.Context, req *entity.ApprovalRequest, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[req.ID]
	if !ok || stored.Version != expectedVersion {
		return fmt.Errorf("%w: request %s", domainwf.ErrConcurrencyConflict, req.ID)
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockRequestRepo) ListByStatus(ctx context.Context, status domainwf.Status, after port.RequestCursor, limit int) ([]*entity.ApprovalRequest, error) {
	page := m.listPage(status, after, limit)

	m.lists++
	if m.afterPage != nil {
		m.afterPage(m.lists)
	}
	return page, nil
}

func (m *mockRequestRepo) listPage(status domainwf.Status, after port.RequestCursor, limit int) []*entity.ApprovalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	less := func(a, b port.RequestCursor) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	}

	var all []*entity.ApprovalRequest
	for _, r := range m.requests {
		if r.Status == status && (after.ID == "" || less(after, port.After(r))) {
			all = append(all, r.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool { return less(port.After(all[i]), port.After(all[j])) })

	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*entity.AuditEntry
	appendErr error
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	var seq int64
	for _, e := range m.entries {
		if e.RequestID == entry.RequestID {
			seq = e.SequenceNumber
		}
	}
	entry.SequenceNumber = seq + 1
	entry.ID = int64(len(m.entries) + 1)
	c := *entry
	m.entries = append(m.entries, &c)
	return nil
}

func (m *mockAuditRepo) ListFor(ctx context.Context, requestID string) iter.Seq2[*entity.AuditEntry, error] {
	return func(yield func(*entity.AuditEntry, error) bool) {
		m.mu.Lock()
		var snapshot []*entity.AuditEntry
		for _, e := range m.entries {
			if e.RequestID == requestID {
				c := *e
				snapshot = append(snapshot, &c)
			}
		}
		m.mu.Unlock()

		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *mockAuditRepo) forRequest(requestID string) []*entity.AuditEntry {
	var out []*entity.AuditEntry
	for e := range m.ListFor(context.Background(), requestID) {
		out = append(out, e)
	}
	return out
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockRecords struct {
	mu      sync.Mutex
	records map[string]*entity.SideEffectRecord
}

func newMockRecords() *mockRecords {
	return &mockRecords{records: make(map[string]*entity.SideEffectRecord)}
}

func (m *mockRecords) Get(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[requestID+"/"+effectKey]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (m *mockRecords) Claim(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := requestID + "/" + effectKey
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
	rec := m.records[requestID+"/"+effectKey]
	rec.Status = entity.SideEffectExecuted
	rec.ExecutedAt = &at
	return nil
}

func (m *mockRecords) MarkFailed(ctx context.Context, requestID, effectKey, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[requestID+"/"+effectKey]
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

type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) Publish(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockPublisher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
