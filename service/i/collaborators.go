package i

import "context"

// Logger is the subset of the vinom-common logger the core uses.
type Logger interface {
	Info(string)
	Warning(string)
	Error(string)
}

// Broadcaster publishes notifications to every connected client.
type Broadcaster interface {
	// Publish sends event on the default channel.
	Publish(event string, data any)

	// PublishTo sends event on the named channel.
	PublishTo(channel, event string, data any)
}

// Actuator signals the physical claw. Direction is a move direction or "grab".
type Actuator interface {
	Blink(ctx context.Context, direction string) error
}

// Audio plays feedback sounds ("move", "grab").
type Audio interface {
	Play(ctx context.Context, sound string) error
}

// Lamp drives the metric warning lamp.
type Lamp interface {
	SetLamp(ctx context.Context, on bool) error
}
