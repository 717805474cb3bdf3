package i

import (
	"github.com/beka-birhanu/claw-arbiter/model"
)

// SessionScheduler serializes access to the actuator, one client at a time.
type SessionScheduler interface {
	// Join queues the client or reports its current place or session.
	Join(clientID string) (model.JoinResult, error)

	// Leave drops the client from the queue and releases its session.
	Leave(clientID string) (model.LeaveResult, error)

	// Snapshot returns the queue and active session.
	Snapshot() model.Snapshot

	// IsActive reports whether clientID holds an unexpired session.
	IsActive(clientID string) bool

	// Stop cancels the pending expiry timer.
	Stop()
}
