package workflow

import (
	"context"

	domainwf "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"
)

func onLastStage(disbursement bool) domainwf.ConditionFunc {
	return func(ctx context.Context) bool {
		pos, ok := domainwf.PositionFrom(ctx)
		return ok && pos.Last && pos.Disbursement == disbursement
	}
}

func beforeLastStage(ctx context.Context) bool {
	pos, ok := domainwf.PositionFrom(ctx)
	return ok && !pos.Last
}

func onFirstStage(ctx context.Context) bool {
	pos, ok := domainwf.PositionFrom(ctx)
	return ok && pos.Index == 0
}

// BuildApprovalLifecycle configures the status transitions shared by every request type.
// Stage-dependent choices read the StagePosition stored in the context passed to Fire.
func BuildApprovalLifecycle() domainwf.LifecycleBuilder {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatusDraft).
		Permit(domainwf.ActionSubmit, domainwf.StatusSubmitted).
		Permit(domainwf.ActionCancel, domainwf.StatusCancelled)

	builder.Configure(domainwf.StatusSubmitted).
		Permit(domainwf.ActionRoute, domainwf.StatusPending).
		Permit(domainwf.ActionCancel, domainwf.StatusCancelled)

	builder.Configure(domainwf.StatusPending).
		PermitIf(domainwf.ActionApprove, domainwf.StatusPending, beforeLastStage).
		PermitIf(domainwf.ActionApprove, domainwf.StatusApproved, onLastStage(false)).
		PermitIf(domainwf.ActionApprove, domainwf.StatusDisbursed, onLastStage(true)).
		PermitIf(domainwf.ActionDisburse, domainwf.StatusDisbursed, onLastStage(true)).
		Permit(domainwf.ActionReject, domainwf.StatusRejected).
		PermitIf(domainwf.ActionCancel, domainwf.StatusCancelled, onFirstStage)

	// APPROVED, REJECTED, DISBURSED and CANCELLED have no outgoing transitions

	return builder
}
