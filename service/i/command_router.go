package i

import (
	"context"

	"github.com/beka-birhanu/claw-arbiter/model"
)

// CommandRouter is the entry point every transport dispatches to.
type CommandRouter interface {
	JoinQueue(clientID string) (model.JoinResult, error)
	LeaveQueue(clientID string) (model.LeaveResult, error)
	QueueStatus() model.Snapshot

	// InitGame returns the current round, regenerating it when force is set.
	// Source names the caller for the logs.
	InitGame(ctx context.Context, source string, force bool) model.RoundState
	GameState() model.RoundState

	Move(ctx context.Context, clientID, direction string) (model.MoveResult, error)

	// Grab resolves a grab; active=false is a release. The reported claw
	// position, when present, is advisory.
	Grab(ctx context.Context, clientID string, active bool, at *model.Point) (model.GrabResult, error)

	// Forward relays a custom event untouched. An empty channel means the
	// default one.
	Forward(channel, event string, data any) error
}
