package workflow

import "context"

// StateMachine tracks a request's status and validates lifecycle actions
type StateMachine interface {
	// Status returns the current status
	Status() Status

	// CanFire returns true if the action has at least one candidate transition.
	// Conditions are not evaluated.
	CanFire(action Action) bool

	// Fire applies the action, moving to the first candidate whose condition holds
	Fire(ctx context.Context, action Action) error

	// PermittedActions returns all actions configured for the current status
	PermittedActions() []Action
}
