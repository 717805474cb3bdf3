package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/beka-birhanu/claw-arbiter/service/i"
)

var ErrMissingSound = errors.New("sound file not found")

const moveCooldown = 300 * time.Millisecond

var soundFiles = map[string]string{
	"move": "move.mp3",
	"grab": "grab.mp3",
}

// Process is a running playback.
type Process interface {
	Kill() error
	Wait() error
}

// Spawner starts a player process.
type Spawner func(name string, args, env []string) (Process, error)

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Kill() error { return p.cmd.Process.Kill() }
func (p execProcess) Wait() error { return p.cmd.Wait() }

// ExecSpawner starts the process with os/exec.
func ExecSpawner(name string, args, env []string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd: cmd}, nil
}

// AudioConfig configures an Audio driver.
type AudioConfig struct {
	SoundsDir     string
	PulseServer   string
	XDGRuntimeDir string
	Spawner       Spawner
	Logger        i.Logger
	Now           func() time.Time
}

// Audio plays feedback sounds with ffplay. Only one sound plays at a time;
// starting a new one stops the previous.
type Audio struct {
	dir    string
	env    []string
	spawn  Spawner
	logger i.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastMove time.Time
	current  Process
}

// NewAudio creates an Audio driver.
func NewAudio(c *AudioConfig) *Audio {
	a := &Audio{
		dir:    c.SoundsDir,
		spawn:  c.Spawner,
		logger: c.Logger,
		now:    c.Now,
	}
	if a.spawn == nil {
		a.spawn = ExecSpawner
	}
	if a.now == nil {
		a.now = time.Now
	}

	home := os.Getenv("HOME")
	if home == "" {
		home = "/home/pi"
	}
	a.env = append(os.Environ(),
		"PULSE_SERVER="+c.PulseServer,
		"XDG_RUNTIME_DIR="+c.XDGRuntimeDir,
		"HOME="+home,
	)
	return a
}

// Play starts sound. Move sounds closer together than the cooldown are
// skipped.
func (a *Audio) Play(_ context.Context, sound string) error {
	name, ok := soundFiles[sound]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingSound, sound)
	}
	file, err := filepath.Abs(filepath.Join(a.dir, name))
	if err != nil {
		return err
	}
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingSound, file)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if sound == "move" {
		if !a.lastMove.IsZero() && now.Sub(a.lastMove) < moveCooldown {
			return nil
		}
		a.lastMove = now
	}

	if a.current != nil {
		_ = a.current.Kill()
		a.current = nil
	}

	proc, err := a.spawn("ffplay", []string{"-nodisp", "-loglevel", "quiet", "-autoexit", file}, a.env)
	if err != nil {
		return fmt.Errorf("starting ffplay: %w", err)
	}
	a.current = proc
	go a.reap(sound, proc)
	return nil
}

func (a *Audio) reap(sound string, proc Process) {
	err := proc.Wait()

	a.mu.Lock()
	if a.current == proc {
		a.current = nil
	}
	a.mu.Unlock()

	if err != nil {
		a.logger.Warning(fmt.Sprintf("ffplay %s exited: %s", sound, err))
		return
	}
	a.logger.Info(fmt.Sprintf("played %s", sound))
}
