package broadcast

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// NotificationRecordType tags notification datagrams sent to UDP clients.
const NotificationRecordType = 10

// DatagramBroadcaster is the part of the UDP socket manager the sink uses.
type DatagramBroadcaster interface {
	BroadcastToClients(clientIDs []uuid.UUID, recordType byte, payload []byte)
}

// UDPSink forwards notifications to every registered UDP client.
type UDPSink struct {
	socket DatagramBroadcaster

	mu      sync.RWMutex
	clients map[uuid.UUID]struct{}
}

// NewUDPSink creates a sink writing to socket.
func NewUDPSink(socket DatagramBroadcaster) *UDPSink {
	return &UDPSink{socket: socket, clients: make(map[uuid.UUID]struct{})}
}

// Register adds an authenticated client to the recipients.
func (u *UDPSink) Register(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clients[id] = struct{}{}
}

// Unregister removes a client from the recipients.
func (u *UDPSink) Unregister(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.clients, id)
}

// Clients returns the registered client ids in a stable order.
func (u *UDPSink) Clients() []uuid.UUID {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(u.clients))
	for id := range u.clients {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids
}

// Send broadcasts payload to the registered clients.
func (u *UDPSink) Send(payload []byte) {
	ids := u.Clients()
	if len(ids) == 0 {
		return
	}
	u.socket.BroadcastToClients(ids, NotificationRecordType, payload)
}
