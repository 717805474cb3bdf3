// Package model holds the data shared by the arbitration core and its
// transports: world objects, round state, sessions and command results.
package model

import "strings"

// Kind tags a world object as harmful or corrective to the metric.
type Kind string

const (
	KindNegative Kind = "food"     // raises the metric
	KindPositive Kind = "exercise" // lowers the metric
)

// Direction of a single actuator step.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// ParseDirection normalises s and reports whether it names a direction.
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return d, true
	}
	return "", false
}

// Position of the actuator in centred coordinates.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Point is a coordinate in layout space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorldObject is a collectible placed in the layout. Magnitude is nil when
// the catalog entry carries no explicit impact.
type WorldObject struct {
	ID        string   `json:"id"`
	Kind      Kind     `json:"type"`
	Label     string   `json:"name"`
	Magnitude *float64 `json:"impact,omitempty"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
}

// RoundState is the aggregate owned by the game.
type RoundState struct {
	Round    int           `json:"round"`
	Position Position      `json:"clawPos"`
	Objects  []WorldObject `json:"gameObjects"`
	Metric   float64       `json:"metric"`
	Lamp     bool          `json:"lamp"`
}

// Clone returns a copy that shares no slices with s.
func (s RoundState) Clone() RoundState {
	c := s
	c.Objects = make([]WorldObject, len(s.Objects))
	copy(c.Objects, s.Objects)
	return c
}

// MoveResult is returned by a move command.
type MoveResult struct {
	Direction Direction `json:"direction"`
	Position  Position  `json:"position"`
}

// Impact describes the metric change caused by a captured object.
type Impact struct {
	Kind      Kind    `json:"type"`
	Label     string  `json:"name"`
	Magnitude float64 `json:"impact"`
}

// GrabResult is returned by a grab command.
type GrabResult struct {
	Captured bool         `json:"captured"`
	Object   *WorldObject `json:"object,omitempty"`
	Distance float64      `json:"distance,omitempty"`
	Impact   *Impact      `json:"impact,omitempty"`
	Metric   float64      `json:"metric"`
	Lamp     bool         `json:"lamp"`
	NewRound bool         `json:"newRound"`
	Released bool         `json:"released,omitempty"`
	Position Position     `json:"position"`
}
