package workflow

// Action is what an actor does to a request. Every action attempt ends up in the audit trail.
type Action string

const (
	ActionSubmit      Action = "SUBMIT"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionDisburse    Action = "DISBURSE"
	ActionCancel      Action = "CANCEL"
	ActionGuardDenied Action = "GUARD_DENIED"

	// ActionRoute moves a submitted request onto its first stage. It is fired by the
	// engine right after Submit and is never audited on its own.
	ActionRoute Action = "ROUTE"
)

var auditableActions = map[Action]bool{
	ActionSubmit:      true,
	ActionApprove:     true,
	ActionReject:      true,
	ActionDisburse:    true,
	ActionCancel:      true,
	ActionGuardDenied: true,
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsAuditable reports whether the action may appear in an audit entry
func (a Action) IsAuditable() bool {
	return auditableActions[a]
}
