package workflow

// Status represents the lifecycle status of an approval request
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDisbursed Status = "DISBURSED"
	StatusCancelled Status = "CANCELLED"
)

var validStatuses = map[Status]bool{
	StatusDraft:     true,
	StatusSubmitted: true,
	StatusPending:   true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusDisbursed: true,
	StatusCancelled: true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusDisbursed: true,
	StatusCancelled: true,
}

// IsTerminal returns true if the request can no longer change status
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsSuccess returns true for the statuses reached through the final approval
func (s Status) IsSuccess() bool {
	return s == StatusApproved || s == StatusDisbursed
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle status
func (s Status) IsValid() bool {
	return validStatuses[s]
}
