package port

import (
	"context"
	"iter"
	"time"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// RequestCursor is the position after the last request of a page.
// The zero value starts from the beginning.
type RequestCursor struct {
	CreatedAt time.Time
	ID        string
}

// After returns the cursor positioned after req
func After(req *entity.ApprovalRequest) RequestCursor {
	return RequestCursor{CreatedAt: req.CreatedAt, ID: req.ID}
}

// RequestRepository defines persistence operations for ApprovalRequest
type RequestRepository interface {
	// Create inserts a new request. A second successor of the same previous version fails with workflow.ErrInvalidState.
	Create(ctx context.Context, req *entity.ApprovalRequest) error

	// GetByID returns the request or an error wrapping workflow.ErrNotFound
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)

	// GetSuccessor returns the request resubmitted from id, or nil when there is none
	GetSuccessor(ctx context.Context, id string) (*entity.ApprovalRequest, error)

	// UpdateState persists status, stage index, version and updated_at when the stored
	// version still equals expectedVersion. A miss returns workflow.ErrConcurrencyConflict.
	UpdateState(ctx context.Context, req *entity.ApprovalRequest, expectedVersion int64) error

	// ListByStatus returns up to limit requests in a status that sort after the
	// cursor, ordered by (created_at, id)
	ListByStatus(ctx context.Context, status workflow.Status, after RequestCursor, limit int) ([]*entity.ApprovalRequest, error)
}

// AuditRepository defines persistence operations for the audit trail
type AuditRepository interface {
	// Append assigns the next sequence number for the request and inserts the entry.
	// Must run inside the caller's transaction.
	Append(ctx context.Context, entry *entity.AuditEntry) error

	// ListFor lazily yields entries ordered by sequence number. Each range re-queries storage.
	ListFor(ctx context.Context, requestID string) iter.Seq2[*entity.AuditEntry, error]
}

// SideEffectRepository defines persistence operations for side-effect records
type SideEffectRepository interface {
	// Get returns the record or nil when it does not exist
	Get(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, error)

	// Claim makes the caller the executor of an effect. A missing record is created
	// Pending and a Failed one is moved back to Pending; both count as claimed.
	// Pending and Executed records are returned unclaimed.
	Claim(ctx context.Context, requestID, effectKey string) (*entity.SideEffectRecord, bool, error)

	// MarkExecuted moves a Pending record to Executed
	MarkExecuted(ctx context.Context, requestID, effectKey string, at time.Time) error

	// MarkFailed moves a Pending record to Failed and stores the error
	MarkFailed(ctx context.Context, requestID, effectKey, lastError string) error

	// ListByRequestID returns every record of a request
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.SideEffectRecord, error)

	// ListFailedRequestIDs returns ids of requests with at least one Failed record
	ListFailedRequestIDs(ctx context.Context, limit int) ([]string, error)
}

// CashBookRepository defines persistence operations for the petty-cash book
type CashBookRepository interface {
	// Credit appends an entry and fills in the running balance. A request can be credited once.
	Credit(ctx context.Context, entry *entity.CashBookEntry) error

	// GetByRequestID returns the entry posted for a request, or nil
	GetByRequestID(ctx context.Context, requestID string) (*entity.CashBookEntry, error)

	// Balance returns the current balance in cents
	Balance(ctx context.Context) (int64, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
