package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/beka-birhanu/claw-arbiter/model"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/beka-birhanu/claw-arbiter/store"
	"github.com/google/uuid"
)

const (
	defaultSessionDuration = 30 * time.Second
	defaultSessionGrace    = 500 * time.Millisecond
)

// Scheduler errors.
var (
	ErrMissingClientID = errors.New("client id is required")
)

// schedulerRecord is the persisted form of the scheduler.
type schedulerRecord struct {
	Queue  []model.QueueEntry `json:"queue"`
	Active *model.Session     `json:"active"`
}

// SchedulerConfig holds the collaborators and timings of a Scheduler.
type SchedulerConfig struct {
	Store       store.Store
	Broadcaster i.Broadcaster
	Logger      i.Logger
	Clock       Clock
	Duration    time.Duration // length of a session
	Grace       time.Duration // delay past expiry before the timer fires
}

// Scheduler grants exclusive, time-boxed sessions to one client at a time
// and queues the rest in arrival order. Join, Leave and timer expiry all
// mutate the queue and session under the embedded mutex.
type Scheduler struct {
	store       store.Store
	broadcaster i.Broadcaster
	logger      i.Logger
	clock       Clock
	duration    time.Duration
	grace       time.Duration

	queue   []model.QueueEntry
	active  *model.Session
	timer   Timer
	stopped bool
	sync.Mutex
}

// NewScheduler restores the persisted queue and session. A restored session
// keeps its original expiry; one that lapsed while the process was down is
// released and the next client promoted.
func NewScheduler(c *SchedulerConfig) (*Scheduler, error) {
	if c.Store == nil {
		return nil, ErrMissingStore
	}
	if c.Logger == nil {
		return nil, ErrMissingLogger
	}

	s := &Scheduler{
		store:       c.Store,
		broadcaster: c.Broadcaster,
		logger:      c.Logger,
		clock:       c.Clock,
		duration:    c.Duration,
		grace:       c.Grace,
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.duration <= 0 {
		s.duration = defaultSessionDuration
	}
	if s.grace < 0 {
		s.grace = defaultSessionGrace
	}

	rec, err := s.load()
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	s.restore(rec)
	if s.active != nil && s.clock.Now().Before(s.active.ExpiresAt) {
		s.arm(s.active.ID, s.active.ExpiresAt.Sub(s.clock.Now())+s.grace)
		s.logger.Info(fmt.Sprintf("resumed session of %s, %ds left", s.active.ClientID, s.remaining()))
	} else {
		s.reap()
		s.promote()
	}
	s.persist()
	return s, nil
}

func (s *Scheduler) load() (schedulerRecord, error) {
	raw, err := s.store.Get(context.Background(), store.SchedulerKey)
	if errors.Is(err, store.ErrNotFound) {
		return schedulerRecord{}, nil
	}
	if err != nil {
		return schedulerRecord{}, fmt.Errorf("loading scheduler: %w", err)
	}

	var rec schedulerRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warning(fmt.Sprintf("discarding unreadable scheduler record: %s", err))
		return schedulerRecord{}, nil
	}
	return rec, nil
}

// restore installs rec, dropping duplicate queue entries and any entry for
// the active client. Callers hold the lock.
func (s *Scheduler) restore(rec schedulerRecord) {
	s.active = rec.Active
	if s.active != nil && s.active.ClientID == "" {
		s.active = nil
	}

	seen := make(map[string]bool)
	if s.active != nil {
		seen[s.active.ClientID] = true
	}
	for _, e := range rec.Queue {
		if e.ClientID == "" || seen[e.ClientID] {
			continue
		}
		seen[e.ClientID] = true
		s.queue = append(s.queue, e)
	}
}

// Join admits clientID. A client holding a live session gets it back with
// its remaining time unchanged; a queued client gets its current position;
// anyone else is appended to the queue and promoted at once if the
// actuator is free.
func (s *Scheduler) Join(clientID string) (model.JoinResult, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return model.JoinResult{}, ErrMissingClientID
	}

	s.Lock()
	defer s.Unlock()

	changed := s.reap()

	switch {
	case s.active != nil && s.active.ClientID == clientID:
		s.logger.Info(fmt.Sprintf("client %s reconnected to its session", clientID))
	case s.position(clientID) > 0:
	default:
		s.queue = append(s.queue, model.QueueEntry{ClientID: clientID, JoinedAt: s.clock.Now()})
		s.promote()
		changed = true
		s.logger.Info(fmt.Sprintf("client %s joined the queue", clientID))
	}

	if changed {
		s.persist()
	}
	s.publish()

	if s.active != nil && s.active.ClientID == clientID {
		return model.JoinResult{Active: true, RemainingSeconds: s.remaining()}, nil
	}
	return model.JoinResult{Position: s.position(clientID)}, nil
}

// Leave removes clientID from the queue and releases its session, promoting
// the next client. Leaving twice is harmless.
func (s *Scheduler) Leave(clientID string) (model.LeaveResult, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return model.LeaveResult{}, ErrMissingClientID
	}

	s.Lock()
	defer s.Unlock()

	changed := s.reap()

	var result model.LeaveResult
	if idx := s.position(clientID) - 1; idx >= 0 {
		s.queue = slices.Delete(s.queue, idx, idx+1)
		result.WasQueued = true
		changed = true
	}

	if s.active != nil && s.active.ClientID == clientID {
		s.release()
		s.promote()
		result.WasActive = true
		changed = true
		s.logger.Info(fmt.Sprintf("client %s released its session", clientID))
	}

	if changed {
		s.persist()
	}
	s.publish()
	return result, nil
}

// Snapshot returns the queue and the active session.
func (s *Scheduler) Snapshot() model.Snapshot {
	s.Lock()
	defer s.Unlock()

	if s.reap() {
		s.persist()
		s.publish()
	}
	return s.snapshot()
}

// IsActive reports whether clientID holds an unexpired session.
func (s *Scheduler) IsActive(clientID string) bool {
	s.Lock()
	defer s.Unlock()
	return s.active != nil && s.active.ClientID == clientID && s.clock.Now().Before(s.active.ExpiresAt)
}

// Stop cancels the pending expiry timer and keeps any timer from being
// armed again. The persisted state is kept so a restart resumes the same
// session.
func (s *Scheduler) Stop() {
	s.Lock()
	defer s.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire is run by the session timer armed for id. A timer whose session
// has since been released or replaced does nothing.
func (s *Scheduler) expire(id uuid.UUID) {
	s.Lock()
	defer s.Unlock()

	if s.stopped || s.active == nil || s.active.ID != id {
		return
	}
	if left := s.active.ExpiresAt.Sub(s.clock.Now()); left > 0 {
		s.arm(id, left+s.grace)
		return
	}

	s.logger.Info(fmt.Sprintf("session of %s expired", s.active.ClientID))
	s.release()
	s.promote()
	s.persist()
	s.publish()
}

// reap releases an active session whose expiry has passed and promotes
// the next client. Callers hold the lock.
func (s *Scheduler) reap() bool {
	if s.active == nil || s.clock.Now().Before(s.active.ExpiresAt) {
		return false
	}
	s.logger.Info(fmt.Sprintf("session of %s expired", s.active.ClientID))
	s.release()
	s.promote()
	return true
}

// promote grants the head of the queue a new session when none is active.
// Callers hold the lock.
func (s *Scheduler) promote() {
	if s.active != nil || len(s.queue) == 0 {
		return
	}

	head := s.queue[0]
	s.queue = slices.Delete(s.queue, 0, 1)
	s.active = &model.Session{
		ID:        uuid.New(),
		ClientID:  head.ClientID,
		ExpiresAt: s.clock.Now().Add(s.duration),
	}
	s.arm(s.active.ID, s.duration+s.grace)
	s.logger.Info(fmt.Sprintf("client %s granted a %s session", head.ClientID, s.duration))
}

// release clears the active session and its timer. Callers hold the lock.
func (s *Scheduler) release() {
	s.active = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// arm replaces the session timer with one firing after d for session id.
// Callers hold the lock.
func (s *Scheduler) arm(id uuid.UUID, d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stopped {
		return
	}
	s.timer = s.clock.AfterFunc(d, func() { s.expire(id) })
}

// position returns the 1-based queue position of clientID, or 0.
func (s *Scheduler) position(clientID string) int {
	return slices.IndexFunc(s.queue, func(e model.QueueEntry) bool { return e.ClientID == clientID }) + 1
}

// remaining returns the whole seconds left in the active session.
func (s *Scheduler) remaining() int {
	if s.active == nil {
		return 0
	}
	left := s.active.ExpiresAt.Sub(s.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

func (s *Scheduler) snapshot() model.Snapshot {
	snap := model.Snapshot{
		Queue:            make([]model.QueuePosition, 0, len(s.queue)),
		RemainingSeconds: s.remaining(),
	}
	for n, e := range s.queue {
		snap.Queue = append(snap.Queue, model.QueuePosition{ClientID: e.ClientID, Position: n + 1})
	}
	if s.active != nil {
		id := s.active.ClientID
		snap.ActiveClientID = &id
	}
	return snap
}

// persist writes the scheduler record under the caller's lock. A failed
// write is logged and the in-memory state stays authoritative.
func (s *Scheduler) persist() {
	raw, err := json.Marshal(schedulerRecord{Queue: s.queue, Active: s.active})
	if err != nil {
		s.logger.Error(fmt.Sprintf("encoding scheduler: %s", err))
		return
	}
	if err := s.store.Put(context.Background(), store.SchedulerKey, raw); err != nil {
		s.logger.Error(fmt.Sprintf("persisting scheduler: %s", err))
	}
}

// publish broadcasts the snapshot under the caller's lock so notifications
// follow mutation order.
func (s *Scheduler) publish() {
	if s.broadcaster != nil {
		s.broadcaster.Publish(EventQueueUpdate, s.snapshot())
	}
}
