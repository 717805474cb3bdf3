// Package broadcast delivers notifications from the core to connected
// clients over websockets and the UDP socket.
package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/beka-birhanu/claw-arbiter/service/i"
)

// Envelope is the wire form of every notification.
type Envelope struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
}

// Sink receives encoded envelopes. Send must not block.
type Sink interface {
	Send(payload []byte)
}

// Fanout encodes each notification once and hands it to every sink.
type Fanout struct {
	channel string
	sinks   []Sink
	logger  i.Logger
}

// NewFanout creates a Fanout publishing on channel by default.
func NewFanout(channel string, logger i.Logger, sinks ...Sink) *Fanout {
	return &Fanout{channel: channel, sinks: sinks, logger: logger}
}

// Publish sends event on the default channel.
func (f *Fanout) Publish(event string, data any) {
	f.PublishTo(f.channel, event, data)
}

// PublishTo sends event on channel, or the default channel when empty.
func (f *Fanout) PublishTo(channel, event string, data any) {
	if channel == "" {
		channel = f.channel
	}
	payload, err := json.Marshal(Envelope{Channel: channel, Event: event, Data: data})
	if err != nil {
		f.logger.Error(fmt.Sprintf("encoding %s notification: %s", event, err))
		return
	}
	for _, s := range f.sinks {
		s.Send(payload)
	}
}
