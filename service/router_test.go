package service

import (
	"context"
	"testing"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerFixture struct {
	router      *Router
	game        *gameFixture
	sched       *schedulerFixture
	broadcaster *recordingBroadcaster
	logger      *recordingLogger
}

func newRouterFixture(t *testing.T, requireActive bool) *routerFixture {
	t.Helper()
	gf := newGameFixture(t)
	sf := newSchedulerFixture(t)
	f := &routerFixture{
		game:        gf,
		sched:       sf,
		broadcaster: &recordingBroadcaster{},
		logger:      &recordingLogger{},
	}
	f.router = NewRouter(&RouterConfig{
		Scheduler:            sf.scheduler,
		Game:                 gf.game,
		Broadcaster:          f.broadcaster,
		Logger:               f.logger,
		RequireActiveSession: requireActive,
	})
	return f
}

func TestRouterMoveValidation(t *testing.T) {
	f := newRouterFixture(t, true)
	ctx := context.Background()

	_, err := f.router.Move(ctx, "alice", "diagonal")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = f.router.Move(ctx, "", "up")
	assert.ErrorIs(t, err, ErrMissingClientID)

	_, err = f.router.Move(ctx, "alice", "up")
	assert.ErrorIs(t, err, ErrNotActiveClient)
	assert.Equal(t, model.Position{}, f.game.game.State().Position)
}

func TestRouterMoveByActiveClient(t *testing.T) {
	f := newRouterFixture(t, true)
	ctx := context.Background()

	joined, err := f.router.JoinQueue("alice")
	require.NoError(t, err)
	require.True(t, joined.Active)
	queued, err := f.router.JoinQueue("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, queued.Position)

	res, err := f.router.Move(ctx, "alice", " Right ")
	require.NoError(t, err)
	assert.Equal(t, model.Position{X: 20}, res.Position)

	_, err = f.router.Move(ctx, "bob", "left")
	assert.ErrorIs(t, err, ErrNotActiveClient)
}

func TestRouterTurnPassesOnLeave(t *testing.T) {
	f := newRouterFixture(t, true)
	ctx := context.Background()
	_, _ = f.router.JoinQueue("alice")
	_, _ = f.router.JoinQueue("bob")

	left, err := f.router.LeaveQueue("alice")
	require.NoError(t, err)
	assert.True(t, left.WasActive)

	_, err = f.router.Move(ctx, "alice", "up")
	assert.ErrorIs(t, err, ErrNotActiveClient)
	_, err = f.router.Move(ctx, "bob", "up")
	assert.NoError(t, err)
	assert.Equal(t, "bob", activeID(f.router.QueueStatus()))
}

func TestRouterGrabRelease(t *testing.T) {
	f := newRouterFixture(t, false)
	before := f.game.game.State()

	res, err := f.router.Grab(context.Background(), "", false, nil)

	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.False(t, res.Captured)
	assert.Equal(t, before.Objects, f.game.game.State().Objects)
	assert.Empty(t, f.game.device.blinks)
}

func TestRouterGrabUsesServerPosition(t *testing.T) {
	f := newRouterFixture(t, false)
	f.game.setLayout(model.Position{}, metricBaseline,
		object("here", model.KindNegative, 130, 130),
		object("there", model.KindNegative, 20, 20),
	)

	res, err := f.router.Grab(context.Background(), "", true, &model.Point{X: 20, Y: 20})

	require.NoError(t, err)
	require.True(t, res.Captured)
	assert.Equal(t, "here", res.Object.ID)
	assert.Positive(t, f.logger.warningCount())
}

func TestRouterGrabRequiresSession(t *testing.T) {
	f := newRouterFixture(t, true)

	_, err := f.router.Grab(context.Background(), "alice", true, nil)
	assert.ErrorIs(t, err, ErrNotActiveClient)

	_, err = f.router.Grab(context.Background(), "alice", false, nil)
	assert.ErrorIs(t, err, ErrNotActiveClient)
}

func TestRouterInitGame(t *testing.T) {
	f := newRouterFixture(t, true)
	ctx := context.Background()

	first := f.router.InitGame(ctx, "joystick", false)
	second := f.router.InitGame(ctx, "", false)
	assert.Equal(t, first.Objects, second.Objects)
	assert.Equal(t, first, f.router.GameState())
}

func TestRouterForward(t *testing.T) {
	f := newRouterFixture(t, true)

	require.NoError(t, f.router.Forward("motor-channel", "calibrate", map[string]any{"steps": 3}))
	assert.ErrorIs(t, f.router.Forward("motor-channel", " ", nil), ErrMissingEvent)

	forwarded := f.broadcaster.named("calibrate")
	require.Len(t, forwarded, 1)
	assert.Equal(t, "motor-channel", forwarded[0].channel)
}
