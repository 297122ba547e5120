package workflow

import (
	"context"
	"fmt"
)

// ConditionFunc decides whether a candidate transition applies
type ConditionFunc func(ctx context.Context) bool

// LifecycleBuilder builds a configured lifecycle machine
type LifecycleBuilder interface {
	// Configure returns the transition table for the given status
	Configure(status Status) StatusConfiguration

	// Build creates a new machine positioned at the given status
	Build(initial Status) StateMachine
}

// StatusConfiguration configures the transitions leaving one status
type StatusConfiguration interface {
	// Permit allows an action to move the machine to the target status
	Permit(action Action, to Status) StatusConfiguration

	// PermitIf allows an action to move the machine to the target status when the condition holds.
	// Candidates are tried in registration order.
	PermitIf(action Action, to Status, cond ConditionFunc) StatusConfiguration
}

type transition struct {
	to   Status
	cond ConditionFunc
}

type statusConfig struct {
	from        Status
	transitions map[Action][]transition
}

type lifecycleBuilder struct {
	configurations map[Status]*statusConfig
}

type stateMachine struct {
	current        Status
	configurations map[Status]*statusConfig
}

// NewBuilder creates a new lifecycle builder
func NewBuilder() LifecycleBuilder {
	return &lifecycleBuilder{
		configurations: make(map[Status]*statusConfig),
	}
}

func (b *lifecycleBuilder) Configure(status Status) StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &statusConfig{
			from:        status,
			transitions: make(map[Action][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

// Build copies the transition tables so machines never observe later Configure calls
func (b *lifecycleBuilder) Build(initial Status) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}

	configs := make(map[Status]*statusConfig, len(b.configurations))
	for status, config := range b.configurations {
		transitions := make(map[Action][]transition, len(config.transitions))
		for action, candidates := range config.transitions {
			transitions[action] = append([]transition{}, candidates...)
		}
		configs[status] = &statusConfig{
			from:        status,
			transitions: transitions,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configs,
	}
}

func (c *statusConfig) Permit(action Action, to Status) StatusConfiguration {
	return c.PermitIf(action, to, nil)
}

func (c *statusConfig) PermitIf(action Action, to Status, cond ConditionFunc) StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}

	c.transitions[action] = append(c.transitions[action], transition{
		to:   to,
		cond: cond,
	})

	return c
}

func (m *stateMachine) Status() Status {
	return m.current
}

func (m *stateMachine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[action]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, action Action) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot %s from %s (no configuration)", ErrInvalidTransition, action, m.current)
	}

	candidates := config.transitions[action]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, m.current)
	}

	for _, t := range candidates {
		if t.cond == nil || t.cond(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrConditionFailed, action, m.current)
}

func (m *stateMachine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.transitions))
	for action := range config.transitions {
		actions = append(actions, action)
	}
	return actions
}
