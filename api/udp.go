package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/google/uuid"
)

// Record types accepted from UDP clients.
const (
	RecordJoinQueue  byte = 1
	RecordLeaveQueue byte = 2
	RecordMove       byte = 3
	RecordGrab       byte = 4
	RecordInitGame   byte = 5
	RecordQueue      byte = 6

	// RecordReply carries the response to a command back to its sender.
	RecordReply byte = 11
)

const udpCommandTimeout = 5 * time.Second

var ErrInvalidToken = errors.New("invalid token")

// Subscribers tracks which UDP clients receive notifications.
type Subscribers interface {
	Register(id uuid.UUID)
	Unregister(id uuid.UUID)
}

// Replier sends a datagram to specific clients.
type Replier interface {
	BroadcastToClients(clientIDs []uuid.UUID, recordType byte, payload []byte)
}

// UDPHandler authenticates UDP clients and turns their records into
// commands. The client's UUID is its id in the queue.
type UDPHandler struct {
	router      i.CommandRouter
	subscribers Subscribers
	replier     Replier
	logger      i.Logger
}

// UDPConfig holds the collaborators of a UDPHandler.
type UDPConfig struct {
	Router      i.CommandRouter
	Subscribers Subscribers
	Replier     Replier
	Logger      i.Logger
}

func NewUDPHandler(c *UDPConfig) (*UDPHandler, error) {
	if c.Router == nil {
		return nil, ErrMissingRouter
	}
	return &UDPHandler{
		router:      c.Router,
		subscribers: c.Subscribers,
		replier:     c.Replier,
		logger:      c.Logger,
	}, nil
}

// Authenticate accepts a 16-byte client UUID as token and subscribes the
// client to notifications.
func (h *UDPHandler) Authenticate(token []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(token)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrInvalidToken
	}
	if h.subscribers != nil {
		h.subscribers.Register(id)
	}
	h.logger.Info(fmt.Sprintf("authenticated udp client: %s", id))
	return id, nil
}

// HandleRequest dispatches one record from clientID and replies with the
// outcome. Leaving the queue also ends the notification subscription; any
// other record renews it.
func (h *UDPHandler) HandleRequest(clientID uuid.UUID, recordType byte, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), udpCommandTimeout)
	defer cancel()

	if h.subscribers != nil {
		if recordType == RecordLeaveQueue {
			defer h.subscribers.Unregister(clientID)
		} else {
			h.subscribers.Register(clientID)
		}
	}

	result, err := h.dispatch(ctx, clientID.String(), recordType, payload)
	if err != nil {
		h.logger.Warning(fmt.Sprintf("udp record %d from %s: %s", recordType, clientID, err))
		_, _, code := classify(err)
		h.reply(clientID, response{Error: err.Error(), Code: code})
		return
	}
	h.reply(clientID, response{Success: true, Result: result})
}

func (h *UDPHandler) dispatch(ctx context.Context, clientID string, recordType byte, payload []byte) (any, error) {
	var data eventData
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadPayload, err)
		}
	}

	switch recordType {
	case RecordJoinQueue:
		return h.router.JoinQueue(clientID)
	case RecordLeaveQueue:
		return h.router.LeaveQueue(clientID)
	case RecordQueue:
		return h.router.QueueStatus(), nil
	case RecordMove:
		return h.router.Move(ctx, clientID, data.Direction)
	case RecordGrab:
		var at *model.Point
		if data.X != nil && data.Y != nil {
			at = &model.Point{X: *data.X, Y: *data.Y}
		}
		active := data.Active == nil || *data.Active
		return h.router.Grab(ctx, clientID, active, at)
	case RecordInitGame:
		return h.router.InitGame(ctx, "udp:"+clientID, data.Force), nil
	default:
		return nil, fmt.Errorf("%w: unknown record type %d", ErrBadPayload, recordType)
	}
}

func (h *UDPHandler) reply(clientID uuid.UUID, r response) {
	if h.replier == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		h.logger.Error(fmt.Sprintf("encoding udp reply: %s", err))
		return
	}
	h.replier.BroadcastToClients([]uuid.UUID{clientID}, RecordReply, raw)
}
