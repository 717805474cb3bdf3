package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
)

// Router errors. All of them are validation failures reported to the caller.
var (
	ErrInvalidDirection = errors.New("direction must be one of up, down, left, right")
	ErrNotActiveClient  = errors.New("client does not hold the active session")
	ErrMissingEvent     = errors.New("event name is required")
)

// coordinateTolerance is how far client-reported grab coordinates may drift
// from the server position before the mismatch is logged.
const coordinateTolerance = moveStep

// RouterConfig holds the collaborators of a Router.
type RouterConfig struct {
	Scheduler   i.SessionScheduler
	Game        i.GameServer
	Broadcaster i.Broadcaster
	Logger      i.Logger

	// RequireActiveSession restricts move and grab to the session holder.
	RequireActiveSession bool
}

// Router validates inbound commands and dispatches them to the scheduler
// and the game. It holds no state of its own.
type Router struct {
	scheduler     i.SessionScheduler
	game          i.GameServer
	broadcaster   i.Broadcaster
	logger        i.Logger
	requireActive bool
}

var _ i.CommandRouter = (*Router)(nil)

// NewRouter creates a Router.
func NewRouter(c *RouterConfig) *Router {
	return &Router{
		scheduler:     c.Scheduler,
		game:          c.Game,
		broadcaster:   c.Broadcaster,
		logger:        c.Logger,
		requireActive: c.RequireActiveSession,
	}
}

// JoinQueue asks for a turn on behalf of clientID.
func (r *Router) JoinQueue(clientID string) (model.JoinResult, error) {
	return r.scheduler.Join(clientID)
}

// LeaveQueue gives up clientID's place or session.
func (r *Router) LeaveQueue(clientID string) (model.LeaveResult, error) {
	return r.scheduler.Leave(clientID)
}

// QueueStatus returns the scheduler snapshot.
func (r *Router) QueueStatus() model.Snapshot {
	return r.scheduler.Snapshot()
}

// InitGame returns the current round, regenerating it only when forced.
func (r *Router) InitGame(ctx context.Context, source string, force bool) model.RoundState {
	if source == "" {
		source = "unknown"
	}
	r.logger.Info(fmt.Sprintf("init requested by %s (force: %v)", source, force))
	return r.game.InitRound(ctx, force)
}

// GameState returns the current round without side effects.
func (r *Router) GameState() model.RoundState {
	return r.game.State()
}

// Move steps the actuator for clientID.
func (r *Router) Move(ctx context.Context, clientID, direction string) (model.MoveResult, error) {
	d, ok := model.ParseDirection(direction)
	if !ok {
		return model.MoveResult{}, ErrInvalidDirection
	}
	if err := r.authorize(clientID); err != nil {
		return model.MoveResult{}, err
	}
	return r.game.Move(ctx, d), nil
}

// Grab resolves a grab for clientID. A release (active=false) is accepted
// and changes nothing. Reported coordinates are advisory: the server
// position decides what is captured.
func (r *Router) Grab(ctx context.Context, clientID string, active bool, at *model.Point) (model.GrabResult, error) {
	if err := r.authorize(clientID); err != nil {
		return model.GrabResult{}, err
	}

	if !active {
		state := r.game.State()
		return model.GrabResult{Released: true, Metric: state.Metric, Lamp: state.Lamp, Position: state.Position}, nil
	}

	if at != nil {
		pos := r.game.State().Position
		dx := at.X - (float64(pos.X) + clawOffset)
		dy := at.Y - (float64(pos.Y) + clawOffset)
		if math.Hypot(dx, dy) > coordinateTolerance {
			r.logger.Warning(fmt.Sprintf("client %s reported claw at (%.0f, %.0f), server has (%d, %d)",
				clientID, at.X, at.Y, pos.X+int(clawOffset), pos.Y+int(clawOffset)))
		}
	}
	return r.game.Grab(ctx), nil
}

// Forward relays a custom event to a channel untouched.
func (r *Router) Forward(channel, event string, data any) error {
	if strings.TrimSpace(event) == "" {
		return ErrMissingEvent
	}
	if r.broadcaster != nil {
		r.broadcaster.PublishTo(channel, event, data)
	}
	return nil
}

func (r *Router) authorize(clientID string) error {
	if !r.requireActive {
		return nil
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return ErrMissingClientID
	}
	if !r.scheduler.IsActive(clientID) {
		return ErrNotActiveClient
	}
	return nil
}
