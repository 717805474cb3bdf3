package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/beka-birhanu/claw-arbiter/store"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// Advance moves time forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(a, b int) bool { return due[a].at.Before(due[b].at) })
		next := due[0]
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type published struct {
	channel string
	event   string
	data    any
}

// recordingBroadcaster keeps every published notification.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBroadcaster) Publish(event string, data any) {
	b.PublishTo("", event, data)
}

func (b *recordingBroadcaster) PublishTo(channel, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{channel: channel, event: event, data: data})
}

func (b *recordingBroadcaster) named(event string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, e := range b.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (b *recordingBroadcaster) last(event string) (published, bool) {
	all := b.named(event)
	if len(all) == 0 {
		return published{}, false
	}
	return all[len(all)-1], true
}

// recordingLogger keeps log lines by level.
type recordingLogger struct {
	mu       sync.Mutex
	infos    []string
	warnings []string
	errors   []string
}

func (l *recordingLogger) Info(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, s)
}

func (l *recordingLogger) Warning(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, s)
}

func (l *recordingLogger) Error(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, s)
}

func (l *recordingLogger) warningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warnings)
}

var errDriverOffline = errors.New("driver offline")

// fakeDevice records driver commands and optionally fails them.
type fakeDevice struct {
	mu     sync.Mutex
	fail   bool
	blinks []string
	sounds []string
	lamps  []bool
}

func (d *fakeDevice) Blink(_ context.Context, direction string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blinks = append(d.blinks, direction)
	if d.fail {
		return errDriverOffline
	}
	return nil
}

func (d *fakeDevice) Play(_ context.Context, sound string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sounds = append(d.sounds, sound)
	if d.fail {
		return errDriverOffline
	}
	return nil
}

func (d *fakeDevice) SetLamp(_ context.Context, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lamps = append(d.lamps, on)
	if d.fail {
		return errDriverOffline
	}
	return nil
}

func (d *fakeDevice) lampCommands() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.lamps...)
}

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func floatPtr(f float64) *float64 { return &f }
