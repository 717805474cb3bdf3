package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is a time-boxed exclusive grant of actuator control.
type Session struct {
	ID        uuid.UUID `json:"id"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// QueueEntry is a client waiting for its turn.
type QueueEntry struct {
	ClientID string    `json:"clientId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// QueuePosition is a queued client and its 1-based place in line.
type QueuePosition struct {
	ClientID string `json:"clientId"`
	Position int    `json:"position"`
}

// Snapshot is the broadcastable view of the scheduler.
type Snapshot struct {
	Queue            []QueuePosition `json:"queue"`
	ActiveClientID   *string         `json:"activeClientId"`
	RemainingSeconds int             `json:"remainingSeconds"`
}

// JoinResult is returned by a join command. Position is 0 when Active.
type JoinResult struct {
	Active           bool `json:"active"`
	Position         int  `json:"position"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

// LeaveResult is returned by a leave command.
type LeaveResult struct {
	WasQueued bool `json:"wasQueued"`
	WasActive bool `json:"wasActive"`
}
