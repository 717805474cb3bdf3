package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/beka-birhanu/claw-arbiter/store"
)

// Game-related errors.
var (
	ErrMissingGenerator = errors.New("game requires a generator")
	ErrMissingStore     = errors.New("game requires a store")
	ErrMissingLogger    = errors.New("a logger is required")
)

// Game constants for movement, capture and metric handling.
const (
	moveStep      = 20  // units per move command
	positionBound = 120 // actuator stays within [-bound, bound] on both axes

	clawOffset    = 130.0 // maps centred actuator coordinates onto the layout
	captureRadius = 40.0  // grabs reach objects strictly closer than this

	defaultImpact  = 20.0
	metricMin      = 60.0
	metricMax      = 250.0
	metricBaseline = 100.0
	lampThreshold  = 200.0 // lamp is on while the metric is above this

	grabSignal = "grab"
)

// GameConfig holds the collaborators of a Game.
type GameConfig struct {
	Generator   *Generator
	Store       store.Store
	Broadcaster i.Broadcaster
	Actuator    i.Actuator
	Audio       i.Audio
	Lamp        i.Lamp
	Logger      i.Logger
}

// Game owns the authoritative round: actuator position, object layout and
// metric. All mutations run under the embedded mutex and are persisted
// before it is released.
type Game struct {
	generator   *Generator
	store       store.Store
	broadcaster i.Broadcaster
	actuator    i.Actuator
	audio       i.Audio
	lamp        i.Lamp
	logger      i.Logger
	state       model.RoundState
	sync.Mutex
}

// NewGame restores the persisted round or starts a new one.
func NewGame(ctx context.Context, c *GameConfig) (*Game, error) {
	if c.Generator == nil {
		return nil, ErrMissingGenerator
	}
	if c.Store == nil {
		return nil, ErrMissingStore
	}
	if c.Logger == nil {
		return nil, ErrMissingLogger
	}

	g := &Game{
		generator:   c.Generator,
		store:       c.Store,
		broadcaster: c.Broadcaster,
		actuator:    c.Actuator,
		audio:       c.Audio,
		lamp:        c.Lamp,
		logger:      c.Logger,
	}

	restored, err := g.load(ctx)
	if err != nil {
		return nil, err
	}

	g.Lock()
	if restored != nil && len(restored.Objects) > 0 {
		g.state = *restored
		g.state.Position = clampPosition(g.state.Position)
		g.state.Metric = clampMetric(g.state.Metric)
		g.state.Lamp = g.state.Metric > lampThreshold
		g.logger.Info(fmt.Sprintf("resumed round %d with %d objects left", g.state.Round, len(g.state.Objects)))
	} else {
		round := 0
		if restored != nil {
			round = restored.Round
		}
		g.startRound(round + 1)
		g.logger.Info(fmt.Sprintf("started round %d", g.state.Round))
	}
	g.persist(ctx)
	lampOn := g.state.Lamp
	g.Unlock()

	g.setLamp(ctx, lampOn)
	return g, nil
}

func (g *Game) load(ctx context.Context) (*model.RoundState, error) {
	raw, err := g.store.Get(ctx, store.RoundKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading round: %w", err)
	}

	var state model.RoundState
	if err := json.Unmarshal(raw, &state); err != nil {
		g.logger.Warning(fmt.Sprintf("discarding unreadable round record: %s", err))
		return nil, nil
	}
	return &state, nil
}

// Move steps the actuator. Unknown directions leave the state untouched.
func (g *Game) Move(ctx context.Context, d model.Direction) model.MoveResult {
	g.Lock()
	pos := g.state.Position
	switch d {
	case model.DirectionUp:
		pos.Y -= moveStep
	case model.DirectionDown:
		pos.Y += moveStep
	case model.DirectionLeft:
		pos.X -= moveStep
	case model.DirectionRight:
		pos.X += moveStep
	default:
		g.Unlock()
		g.logger.Warning(fmt.Sprintf("ignoring move with unknown direction %q", d))
		return model.MoveResult{Direction: d, Position: pos}
	}

	g.state.Position = clampPosition(pos)
	g.persist(ctx)
	result := model.MoveResult{Direction: d, Position: g.state.Position}
	g.publish(EventMove, result)
	g.Unlock()

	g.signal(ctx, string(d), "move")
	return result
}

// Grab captures the object nearest to the actuator when it lies within the
// capture radius. On exactly equal distances the object earliest in the
// layout wins. Capturing the last object starts a new round.
func (g *Game) Grab(ctx context.Context) model.GrabResult {
	g.signal(ctx, grabSignal, grabSignal)

	g.Lock()
	claw := model.Point{
		X: float64(g.state.Position.X) + clawOffset,
		Y: float64(g.state.Position.Y) + clawOffset,
	}

	idx, dist := nearest(claw, g.state.Objects)
	if idx < 0 || dist >= captureRadius {
		result := model.GrabResult{Metric: g.state.Metric, Lamp: g.state.Lamp, Position: g.state.Position}
		g.Unlock()
		g.logger.Info("no object close enough to grab")
		return result
	}

	obj := g.state.Objects[idx]
	g.state.Objects = append(g.state.Objects[:idx:idx], g.state.Objects[idx+1:]...)

	impact := impactOf(obj)
	wasLit := g.state.Lamp
	g.state.Metric = clampMetric(g.state.Metric + impact.Magnitude)
	g.state.Lamp = g.state.Metric > lampThreshold

	result := model.GrabResult{
		Captured: true,
		Object:   &obj,
		Distance: dist,
		Impact:   &impact,
	}

	g.publish(EventObjectGrabbed, obj)
	g.publish(EventBGImpact, impact)
	g.publish(EventMetricUpdate, metricPayload{Metric: g.state.Metric, Lamp: g.state.Lamp})
	g.logger.Info(fmt.Sprintf("grabbed %s %q, metric now %.0f", obj.Kind, obj.Label, g.state.Metric))

	if len(g.state.Objects) == 0 {
		g.startRound(g.state.Round + 1)
		result.NewRound = true
		g.logger.Info(fmt.Sprintf("round finished, started round %d", g.state.Round))
		g.publish(EventObjectsInit, g.state.Objects)
	}

	g.persist(ctx)
	result.Metric = g.state.Metric
	result.Lamp = g.state.Lamp
	result.Position = g.state.Position
	lampOn := g.state.Lamp
	g.Unlock()

	if lampOn != wasLit {
		g.setLamp(ctx, lampOn)
	}
	return result
}

// InitRound returns the current round. A new layout is generated only when
// the current one is empty or forceNew is set.
func (g *Game) InitRound(ctx context.Context, forceNew bool) model.RoundState {
	g.Lock()
	wasLit := g.state.Lamp
	if forceNew || len(g.state.Objects) == 0 {
		g.startRound(g.state.Round + 1)
		g.persist(ctx)
		g.logger.Info(fmt.Sprintf("started round %d (forced: %v)", g.state.Round, forceNew))
	}
	g.publish(EventObjectsInit, g.state.Objects)
	state := g.state.Clone()
	g.Unlock()

	if state.Lamp != wasLit {
		g.setLamp(ctx, state.Lamp)
	}
	return state
}

// State returns a copy of the current round.
func (g *Game) State() model.RoundState {
	g.Lock()
	defer g.Unlock()
	return g.state.Clone()
}

// startRound replaces the round wholesale. Callers hold the lock.
func (g *Game) startRound(round int) {
	g.state = model.RoundState{
		Round:    round,
		Position: model.Position{},
		Objects:  g.generator.Generate(),
		Metric:   metricBaseline,
		Lamp:     false,
	}
}

// persist writes the round record. Callers hold the lock. A failed write is
// logged and the in-memory state stays authoritative.
func (g *Game) persist(ctx context.Context) {
	raw, err := json.Marshal(g.state)
	if err != nil {
		g.logger.Error(fmt.Sprintf("encoding round: %s", err))
		return
	}
	if err := g.store.Put(context.WithoutCancel(ctx), store.RoundKey, raw); err != nil {
		g.logger.Error(fmt.Sprintf("persisting round: %s", err))
	}
}

func (g *Game) publish(event string, data any) {
	if g.broadcaster != nil {
		g.broadcaster.Publish(event, data)
	}
}

// signal blinks the actuator and plays a sound. Failures are logged only.
func (g *Game) signal(ctx context.Context, direction, sound string) {
	if g.actuator != nil {
		if err := g.actuator.Blink(ctx, direction); err != nil {
			g.logger.Warning(fmt.Sprintf("actuator blink %s failed: %s", direction, err))
		}
	}
	if g.audio != nil {
		if err := g.audio.Play(ctx, sound); err != nil {
			g.logger.Warning(fmt.Sprintf("audio %s failed: %s", sound, err))
		}
	}
}

func (g *Game) setLamp(ctx context.Context, on bool) {
	if g.lamp == nil {
		return
	}
	if err := g.lamp.SetLamp(ctx, on); err != nil {
		g.logger.Warning(fmt.Sprintf("lamp %v failed: %s", on, err))
	}
}

// nearest returns the index of the object closest to p and its distance,
// or -1 when objects is empty. Ties keep the first object seen.
func nearest(p model.Point, objects []model.WorldObject) (int, float64) {
	idx, best := -1, math.Inf(1)
	for n, obj := range objects {
		d := distance(p, model.Point{X: obj.X, Y: obj.Y})
		if d < best {
			idx, best = n, d
		}
	}
	return idx, best
}

// impactOf derives the signed metric change of obj: negative objects raise
// the metric, positive objects lower it.
func impactOf(obj model.WorldObject) model.Impact {
	magnitude := defaultImpact
	if obj.Magnitude != nil && *obj.Magnitude != 0 {
		magnitude = math.Abs(*obj.Magnitude)
	}
	if obj.Kind == model.KindPositive {
		magnitude = -magnitude
	}
	return model.Impact{Kind: obj.Kind, Label: obj.Label, Magnitude: magnitude}
}

func clampPosition(p model.Position) model.Position {
	return model.Position{
		X: max(-positionBound, min(positionBound, p.X)),
		Y: max(-positionBound, min(positionBound, p.Y)),
	}
}

func clampMetric(m float64) float64 {
	return max(metricMin, min(metricMax, m))
}
