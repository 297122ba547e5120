package entity

import "time"

// SideEffectStatus is the execution state of one side effect
type SideEffectStatus string

const (
	SideEffectPending  SideEffectStatus = "PENDING"
	SideEffectExecuted SideEffectStatus = "EXECUTED"
	SideEffectFailed   SideEffectStatus = "FAILED"
)

// SideEffectRecord tracks a single (request, effect) execution
type SideEffectRecord struct {
	ID         int64            `json:"id"`
	RequestID  string           `json:"request_id"`
	EffectKey  string           `json:"effect_key"`
	Status     SideEffectStatus `json:"status"`
	Attempts   int              `json:"attempts"`
	LastError  string           `json:"last_error,omitempty"`
	ExecutedAt *time.Time       `json:"executed_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}
