package workflow

import "context"

// StagePosition describes where a request sits within its definition
type StagePosition struct {
	Index        int
	Last         bool
	Disbursement bool
}

type positionKey struct{}

// WithPosition attaches the stage position read by lifecycle conditions
func WithPosition(ctx context.Context, pos StagePosition) context.Context {
	return context.WithValue(ctx, positionKey{}, pos)
}

// PositionFrom returns the stage position stored in ctx, if any
func PositionFrom(ctx context.Context) (StagePosition, bool) {
	pos, ok := ctx.Value(positionKey{}).(StagePosition)
	return pos, ok
}

// PositionOf computes the position of stage index within def
func PositionOf(def *Definition, index int) StagePosition {
	last := def.LastIndex()
	pos := StagePosition{Index: index, Last: index == last}
	if pos.Last {
		pos.Disbursement = def.Stages[last].Disbursement
	}
	return pos
}
