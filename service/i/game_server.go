package i

import (
	"context"

	"github.com/beka-birhanu/claw-arbiter/model"
)

// GameServer owns the round: actuator position, object layout and metric.
type GameServer interface {
	// Move steps the actuator one grid step (20 units) in the given
	// direction, clamped to the board.
	Move(ctx context.Context, d model.Direction) model.MoveResult

	// Grab captures the nearest object within reach, if any.
	Grab(ctx context.Context) model.GrabResult

	// InitRound returns the current round, generating a new one when the
	// layout is empty or forceNew is set.
	InitRound(ctx context.Context, forceNew bool) model.RoundState

	// State returns a copy of the current round.
	State() model.RoundState
}
