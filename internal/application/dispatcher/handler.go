package dispatcher

import (
	"context"

	"github.com/kwayummari/ghf-approval-engine/internal/domain/entity"
	"github.com/kwayummari/ghf-approval-engine/internal/domain/event"
)

// Handler performs one side effect for a finished request. It must return once ctx is done.
type Handler func(ctx context.Context, evt *event.Event) error

// EffectInfo describes a registered side effect
type EffectInfo struct {
	RequestType string
	Key         string
	Description string
	Handler     Handler
}

// Outcome reports what Dispatch did with one effect
type Outcome struct {
	EffectKey string
	// Status is the record status after dispatch
	Status entity.SideEffectStatus
	// Executed is true when the handler ran during this dispatch
	Executed bool
	Err      error
}
