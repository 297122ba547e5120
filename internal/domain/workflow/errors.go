package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRequestType is returned when no definition is registered for a request type
	ErrUnknownRequestType = errors.New("unknown request type")

	// ErrDuplicateDefinition is returned when a request type is registered twice
	ErrDuplicateDefinition = errors.New("duplicate workflow definition")

	// ErrInvalidState is returned when the action is not legal for the request's current status or stage
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized is returned when the actor may not perform the action
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConcurrencyConflict is returned when the expected version does not match the stored one
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation error")

	// ErrSideEffectFailure marks a failed side-effect handler. It is recorded, never returned from a transition.
	ErrSideEffectFailure = errors.New("side effect failure")

	// ErrNotFound is returned when a request does not exist
	ErrNotFound = errors.New("not found")

	// ErrRegistrySealed is returned when registering after startup
	ErrRegistrySealed = fmt.Errorf("%w: registry is sealed", ErrValidation)

	// ErrInvalidTransition is returned when the lifecycle has no transition for an action
	ErrInvalidTransition = fmt.Errorf("%w: transition not permitted", ErrInvalidState)

	// ErrConditionFailed is returned when every candidate transition's condition rejected the action
	ErrConditionFailed = fmt.Errorf("%w: transition condition not met", ErrInvalidState)
)
