package broadcast

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type subscriber struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub pushes notifications to websocket subscribers. A subscriber whose
// buffer is full is disconnected rather than slowing down the publisher.
type Hub struct {
	logger  i.Logger
	greeter func() []Envelope

	mu          sync.Mutex
	subscribers map[uuid.UUID]*subscriber
	closed      bool
}

// NewHub creates an empty Hub.
func NewHub(logger i.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[uuid.UUID]*subscriber),
	}
}

// SetGreeter registers a function whose envelopes are sent to every new
// subscriber before any broadcast.
func (h *Hub) SetGreeter(f func() []Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.greeter = f
}

// Send queues payload for every subscriber.
func (h *Hub) Send(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warning(fmt.Sprintf("dropping slow subscriber %s", id))
			delete(h.subscribers, id)
			sub.close()
		}
	}
}

// deliver queues payload for a single subscriber if it is still connected.
func (h *Hub) deliver(sub *subscriber, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	select {
	case sub.send <- payload:
	default:
		h.logger.Warning(fmt.Sprintf("dropping slow subscriber %s", sub.id))
		delete(h.subscribers, sub.id)
		sub.close()
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams notifications until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warning(fmt.Sprintf("ws upgrade failed: %s", err))
		return
	}

	sub := &subscriber{id: uuid.New(), conn: conn, send: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subscribers[sub.id] = sub
	greeter := h.greeter
	h.mu.Unlock()
	h.logger.Info(fmt.Sprintf("subscriber %s connected", sub.id))

	// Updates published since registration are already queued ahead of the
	// greeting. The greeter may publish and runs without the lock.
	if greeter != nil {
		for _, env := range greeter() {
			if payload, err := json.Marshal(env); err == nil {
				h.deliver(sub, payload)
			}
		}
	}

	go h.writePump(sub)
	h.readPump(sub)
}

// readPump discards inbound frames and unregisters the subscriber once the
// connection fails.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.remove(sub)
		_ = sub.conn.Close()
		h.logger.Info(fmt.Sprintf("subscriber %s disconnected", sub.id))
	}()

	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		sub.close()
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		sub.close()
	}
}
