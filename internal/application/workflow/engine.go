package workflow

import (
	"context"
	"iter"

	"github.com/kwayummari/ghf-approval-engine/internal/application/dispatcher"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

// Command carries the caller's intent for one transition
type Command struct {
	RequestID       string
	Actor           domainwf.Actor
	ExpectedVersion int64
	Comment         string
}

// TransitionEngine applies lifecycle actions to approval requests
type TransitionEngine interface {
	// Submit moves a draft onto its first stage
	Submit(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error)

	// Approve advances the request past its current stage
	Approve(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error)

	// Reject ends the request at its current stage. A comment is required.
	Reject(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error)

	// Disburse completes a request sitting on its disbursement stage
	Disburse(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error)

	// Cancel withdraws a request before any approval was recorded
	Cancel(ctx context.Context, cmd Command) (*entity.ApprovalRequest, error)

	// Get returns a request by id
	Get(ctx context.Context, id string) (*entity.ApprovalRequest, error)

	// ListAudit returns the request's audit trail as a restartable iterator
	ListAudit(ctx context.Context, id string) (iter.Seq2[*entity.AuditEntry, error], error)

	// ListPending returns pending requests whose current stage the actor may act on
	ListPending(ctx context.Context, actor domainwf.Actor) ([]*entity.ApprovalRequest, error)

	// RetrySideEffects re-dispatches the failed effects of a finished request
	RetrySideEffects(ctx context.Context, id string) ([]dispatcher.Outcome, error)

	// RetrySideEffectsAs is RetrySideEffects on behalf of a caller, who must be
	// able to act on the request's final stage
	RetrySideEffectsAs(ctx context.Context, id string, actor domainwf.Actor) ([]dispatcher.Outcome, error)
}
