package api

import (
	"context"
	"sync"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service"
	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

type call struct {
	method   string
	clientID string
	arg      string
	active   bool
	at       *model.Point
	force    bool
	data     any
}

// fakeRouter records every command and lets only "holder" move or grab.
type fakeRouter struct {
	mu    sync.Mutex
	calls []call
	state model.RoundState
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{state: model.RoundState{Round: 3, Metric: 100, Objects: []model.WorldObject{{ID: "a", Kind: model.KindNegative, Label: "Donut", X: 50, Y: 60}}}}
}

func (f *fakeRouter) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeRouter) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeRouter) authorize(clientID string) error {
	if clientID == "" {
		return service.ErrMissingClientID
	}
	if clientID != "holder" {
		return service.ErrNotActiveClient
	}
	return nil
}

func (f *fakeRouter) JoinQueue(clientID string) (model.JoinResult, error) {
	f.record(call{method: "join", clientID: clientID})
	if clientID == "" {
		return model.JoinResult{}, service.ErrMissingClientID
	}
	return model.JoinResult{Position: 2}, nil
}

func (f *fakeRouter) LeaveQueue(clientID string) (model.LeaveResult, error) {
	f.record(call{method: "leave", clientID: clientID})
	return model.LeaveResult{WasQueued: true}, nil
}

func (f *fakeRouter) QueueStatus() model.Snapshot {
	f.record(call{method: "queue"})
	holder := "holder"
	return model.Snapshot{
		Queue:            []model.QueuePosition{{ClientID: "b", Position: 1}},
		ActiveClientID:   &holder,
		RemainingSeconds: 12,
	}
}

func (f *fakeRouter) InitGame(_ context.Context, source string, force bool) model.RoundState {
	f.record(call{method: "init", arg: source, force: force})
	return f.state.Clone()
}

func (f *fakeRouter) GameState() model.RoundState {
	f.record(call{method: "state"})
	return f.state.Clone()
}

func (f *fakeRouter) Move(_ context.Context, clientID, direction string) (model.MoveResult, error) {
	f.record(call{method: "move", clientID: clientID, arg: direction})
	d, ok := model.ParseDirection(direction)
	if !ok {
		return model.MoveResult{}, service.ErrInvalidDirection
	}
	if err := f.authorize(clientID); err != nil {
		return model.MoveResult{}, err
	}
	return model.MoveResult{Direction: d, Position: model.Position{X: 0, Y: -20}}, nil
}

func (f *fakeRouter) Grab(_ context.Context, clientID string, active bool, at *model.Point) (model.GrabResult, error) {
	f.record(call{method: "grab", clientID: clientID, active: active, at: at})
	if err := f.authorize(clientID); err != nil {
		return model.GrabResult{}, err
	}
	if !active {
		return model.GrabResult{Released: true, Metric: 100}, nil
	}
	return model.GrabResult{Captured: true, Metric: 120}, nil
}

func (f *fakeRouter) Forward(channel, event string, data any) error {
	f.record(call{method: "forward", arg: channel + "/" + event, data: data})
	if event == "" {
		return service.ErrMissingEvent
	}
	return nil
}

// replyLog stands in for the UDP socket manager.
type replyLog struct {
	mu         sync.Mutex
	recipients [][]uuid.UUID
	types      []byte
	payload    [][]byte
}

func (r *replyLog) BroadcastToClients(ids []uuid.UUID, recordType byte, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients = append(r.recipients, ids)
	r.types = append(r.types, recordType)
	r.payload = append(r.payload, payload)
}

// notified returns the recipients of every datagram of recordType.
func (r *replyLog) notified(recordType byte) [][]uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]uuid.UUID
	for n, t := range r.types {
		if t == recordType {
			out = append(out, r.recipients[n])
		}
	}
	return out
}
