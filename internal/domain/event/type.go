package event

import "github.com/kwayummari/ghf-approval-engine/internal/domain/workflow"

// Type identifies the type of domain event
type Type string

const (
	TypeRequestSubmitted Type = "request.submitted"
	TypeRequestAdvanced  Type = "request.advanced"
	TypeRequestApproved  Type = "request.approved"
	TypeRequestRejected  Type = "request.rejected"
	TypeRequestDisbursed Type = "request.disbursed"
	TypeRequestCancelled Type = "request.cancelled"
	TypeGuardDenied      Type = "request.guard_denied"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRequestSubmitted,
		TypeRequestAdvanced,
		TypeRequestApproved,
		TypeRequestRejected,
		TypeRequestDisbursed,
		TypeRequestCancelled,
		TypeGuardDenied:
		return true
	default:
		return false
	}
}

// TypeForStatus maps the status a transition landed on to its event type
func TypeForStatus(status workflow.Status) Type {
	switch status {
	case workflow.StatusApproved:
		return TypeRequestApproved
	case workflow.StatusRejected:
		return TypeRequestRejected
	case workflow.StatusDisbursed:
		return TypeRequestDisbursed
	case workflow.StatusCancelled:
		return TypeRequestCancelled
	case workflow.StatusSubmitted:
		return TypeRequestSubmitted
	default:
		return TypeRequestAdvanced
	}
}
