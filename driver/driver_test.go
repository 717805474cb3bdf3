package driver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}

type commandLog struct {
	mu   sync.Mutex
	cmds []string
	fail bool
}

func (c *commandLog) run(_ context.Context, name string, args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = append(c.cmds, name+" "+strings.Join(args, " "))
	if c.fail {
		return errors.New("gpiochip busy")
	}
	return nil
}

func (c *commandLog) count(cmd string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, got := range c.cmds {
		if got == cmd {
			n++
		}
	}
	return n
}

func (c *commandLog) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmds = nil
}

func newTestGPIO(log *commandLog) *GPIO {
	return NewGPIO(&GPIOConfig{Chip: "gpiochip0", Runner: log.run, Logger: nopLogger{}})
}

func TestGPIOResetsDirectionPinsOnStart(t *testing.T) {
	log := &commandLog{}
	newTestGPIO(log)

	for _, pin := range []string{"17", "27", "22", "23", "24"} {
		assert.Equal(t, 1, log.count("gpioset gpiochip0 "+pin+"=0"), pin)
	}
	assert.Zero(t, log.count("gpioset gpiochip0 25=0"))
}

func TestGPIOBlinkDirection(t *testing.T) {
	log := &commandLog{}
	g := newTestGPIO(log)
	log.reset()

	require.NoError(t, g.Blink(context.Background(), "left"))
	assert.Equal(t, 1, log.count("gpioset gpiochip0 22=1"))

	assert.Eventually(t, func() bool {
		return log.count("gpioset gpiochip0 22=0") == 2
	}, time.Second, 10*time.Millisecond, "pin cleared after the pulse")
}

func TestGPIOBlinkUnknownSignal(t *testing.T) {
	g := newTestGPIO(&commandLog{})

	assert.ErrorIs(t, g.Blink(context.Background(), "sideways"), ErrUnknownSignal)
	assert.ErrorIs(t, g.Blink(context.Background(), "lamp"), ErrUnknownSignal)
}

func TestGPIOBlinkReportsRunnerFailure(t *testing.T) {
	log := &commandLog{}
	g := newTestGPIO(log)
	log.fail = true

	assert.Error(t, g.Blink(context.Background(), "up"))
}

func TestGPIOGrabBlinksFiveTimes(t *testing.T) {
	log := &commandLog{}
	g := newTestGPIO(log)

	require.NoError(t, g.Blink(context.Background(), "grab"))
	g.Close()

	assert.Equal(t, grabBlinks, log.count("gpioset gpiochip0 24=1"))
}

func TestGPIOLamp(t *testing.T) {
	log := &commandLog{}
	g := newTestGPIO(log)

	require.NoError(t, g.SetLamp(context.Background(), true))
	assert.Eventually(t, func() bool {
		return log.count("gpioset gpiochip0 25=1") >= 2
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, g.SetLamp(context.Background(), false))
	g.Close()

	log.mu.Lock()
	last := log.cmds[len(log.cmds)-1]
	log.mu.Unlock()
	assert.Equal(t, "gpioset gpiochip0 25=0", last)
}

type fakeProcess struct {
	done   chan struct{}
	once   sync.Once
	killed bool
	mu     sync.Mutex
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type spawnLog struct {
	mu    sync.Mutex
	args  [][]string
	env   []string
	procs []*fakeProcess
}

func (s *spawnLog) spawn(name string, args, env []string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakeProcess{done: make(chan struct{})}
	s.args = append(s.args, append([]string{name}, args...))
	s.env = env
	s.procs = append(s.procs, p)
	return p, nil
}

func soundsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range []string{"move.mp3", "grab.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("id3"), 0o644))
	}
	return dir
}

func TestAudioPlaysWithFFPlay(t *testing.T) {
	spawns := &spawnLog{}
	dir := soundsDir(t)
	a := NewAudio(&AudioConfig{
		SoundsDir:     dir,
		PulseServer:   "unix:/tmp/pulse",
		XDGRuntimeDir: "/run/user/1000",
		Spawner:       spawns.spawn,
		Logger:        nopLogger{},
	})

	require.NoError(t, a.Play(context.Background(), "grab"))

	require.Len(t, spawns.args, 1)
	abs, _ := filepath.Abs(filepath.Join(dir, "grab.mp3"))
	assert.Equal(t, []string{"ffplay", "-nodisp", "-loglevel", "quiet", "-autoexit", abs}, spawns.args[0])
	assert.True(t, slices.Contains(spawns.env, "PULSE_SERVER=unix:/tmp/pulse"))
}

func TestAudioMoveCooldown(t *testing.T) {
	spawns := &spawnLog{}
	now := time.Unix(1000, 0)
	a := NewAudio(&AudioConfig{
		SoundsDir: soundsDir(t),
		Spawner:   spawns.spawn,
		Logger:    nopLogger{},
		Now:       func() time.Time { return now },
	})
	ctx := context.Background()

	require.NoError(t, a.Play(ctx, "move"))
	now = now.Add(100 * time.Millisecond)
	require.NoError(t, a.Play(ctx, "move"))
	assert.Len(t, spawns.args, 1, "move inside the cooldown is skipped")

	require.NoError(t, a.Play(ctx, "grab"))
	assert.Len(t, spawns.args, 2, "grab ignores the cooldown")

	now = now.Add(300 * time.Millisecond)
	require.NoError(t, a.Play(ctx, "move"))
	assert.Len(t, spawns.args, 3)
}

func TestAudioStopsPreviousSound(t *testing.T) {
	spawns := &spawnLog{}
	a := NewAudio(&AudioConfig{SoundsDir: soundsDir(t), Spawner: spawns.spawn, Logger: nopLogger{}})

	require.NoError(t, a.Play(context.Background(), "move"))
	require.NoError(t, a.Play(context.Background(), "grab"))

	require.Len(t, spawns.procs, 2)
	assert.True(t, spawns.procs[0].wasKilled())
	assert.False(t, spawns.procs[1].wasKilled())
}

func TestAudioMissingSound(t *testing.T) {
	a := NewAudio(&AudioConfig{SoundsDir: t.TempDir(), Spawner: (&spawnLog{}).spawn, Logger: nopLogger{}})

	assert.ErrorIs(t, a.Play(context.Background(), "move"), ErrMissingSound)
	assert.ErrorIs(t, a.Play(context.Background(), "fanfare"), ErrMissingSound)
}

func TestNoopAcceptsEverything(t *testing.T) {
	n := Noop{Logger: nopLogger{}}
	ctx := context.Background()

	assert.NoError(t, n.Blink(ctx, "up"))
	assert.NoError(t, n.Play(ctx, "grab"))
	assert.NoError(t, n.SetLamp(ctx, true))
}
