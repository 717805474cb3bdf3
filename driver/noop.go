package driver

import (
	"context"
	"fmt"

	"github.com/beka-birhanu/claw-arbiter/service/i"
)

// Noop stands in for hardware that is disabled. It only logs.
type Noop struct {
	Logger i.Logger
}

func (n Noop) Blink(_ context.Context, direction string) error {
	n.Logger.Info(fmt.Sprintf("blink %s", direction))
	return nil
}

func (n Noop) Play(_ context.Context, sound string) error {
	n.Logger.Info(fmt.Sprintf("play %s", sound))
	return nil
}

func (n Noop) SetLamp(_ context.Context, on bool) error {
	n.Logger.Info(fmt.Sprintf("lamp on=%v", on))
	return nil
}

// Close is a no-op.
func (Noop) Close() {}
