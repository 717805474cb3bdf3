// Package driver signals the physical claw: direction LEDs and the metric
// lamp over GPIO, and feedback sounds through ffplay.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/beka-birhanu/claw-arbiter/service/i"
)

// Driver errors.
var (
	ErrUnknownSignal = errors.New("no pin for signal")
)

// Pin assignments on the GPIO header.
var defaultPins = map[string]int{
	"up":    17,
	"down":  27,
	"left":  22,
	"right": 23,
	"grab":  24,
	"lamp":  25,
}

const (
	directionPulse = 200 * time.Millisecond
	grabBlinks     = 5
	grabInterval   = 200 * time.Millisecond
	grabPulse      = 100 * time.Millisecond
	lampInterval   = 300 * time.Millisecond
	lampPulse      = 120 * time.Millisecond
)

// Runner executes an external command.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs commands with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// GPIO drives LEDs with the gpioset tool.
type GPIO struct {
	chip   string
	pins   map[string]int
	run    Runner
	logger i.Logger

	mu       sync.Mutex
	lampStop chan struct{}
	wg       sync.WaitGroup
}

// GPIOConfig configures a GPIO driver.
type GPIOConfig struct {
	Chip   string
	Runner Runner
	Logger i.Logger
}

// NewGPIO creates a GPIO driver and switches every pin off.
func NewGPIO(c *GPIOConfig) *GPIO {
	g := &GPIO{
		chip:   c.Chip,
		pins:   defaultPins,
		run:    c.Runner,
		logger: c.Logger,
	}
	if g.run == nil {
		g.run = ExecRunner
	}
	g.resetAll(context.Background())
	return g
}

func (g *GPIO) set(ctx context.Context, pin int, value int) error {
	return g.run(ctx, "gpioset", g.chip, fmt.Sprintf("%d=%d", pin, value))
}

func (g *GPIO) resetAll(ctx context.Context) {
	for name, pin := range g.pins {
		if name == "lamp" {
			continue
		}
		if err := g.set(ctx, pin, 0); err != nil {
			g.logger.Warning(fmt.Sprintf("couldn't reset gpio %d: %s", pin, err))
		}
	}
}

// Blink pulses the LED for direction. "grab" blinks several times in the
// background; other directions light for a single pulse.
func (g *GPIO) Blink(ctx context.Context, direction string) error {
	pin, ok := g.pins[direction]
	if !ok || direction == "lamp" {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, direction)
	}
	g.resetAll(ctx)

	if direction == "grab" {
		g.wg.Add(1)
		go g.blinkGrab(pin)
		return nil
	}

	if err := g.set(ctx, pin, 1); err != nil {
		return err
	}
	g.wg.Add(1)
	time.AfterFunc(directionPulse, func() {
		defer g.wg.Done()
		if err := g.set(context.Background(), pin, 0); err != nil {
			g.logger.Warning(fmt.Sprintf("couldn't clear gpio %d: %s", pin, err))
		}
	})
	return nil
}

func (g *GPIO) blinkGrab(pin int) {
	defer g.wg.Done()
	ticker := time.NewTicker(grabInterval)
	defer ticker.Stop()

	for range grabBlinks {
		<-ticker.C
		g.pulse(pin, grabPulse)
	}
}

func (g *GPIO) pulse(pin int, width time.Duration) {
	ctx := context.Background()
	if err := g.set(ctx, pin, 1); err != nil {
		g.logger.Warning(fmt.Sprintf("gpio %d pulse failed: %s", pin, err))
		return
	}
	time.Sleep(width)
	_ = g.set(ctx, pin, 0)
}

// SetLamp starts or stops the blinking warning lamp.
func (g *GPIO) SetLamp(ctx context.Context, on bool) error {
	pin := g.pins["lamp"]

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lampStop != nil {
		close(g.lampStop)
		g.lampStop = nil
	}
	if !on {
		return g.set(ctx, pin, 0)
	}

	stop := make(chan struct{})
	g.lampStop = stop
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(lampInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.pulse(pin, lampPulse)
			}
		}
	}()
	return nil
}

// Close stops the lamp, waits for pending pulses and switches every pin off.
func (g *GPIO) Close() {
	g.mu.Lock()
	if g.lampStop != nil {
		close(g.lampStop)
		g.lampStop = nil
	}
	g.mu.Unlock()

	g.wg.Wait()
	ctx := context.Background()
	g.resetAll(ctx)
	_ = g.set(ctx, g.pins["lamp"], 0)
}
