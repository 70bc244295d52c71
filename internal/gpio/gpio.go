// Package gpio provides pin level access for the drawer sensors with hardware
// abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"time"
)

var (
	// ErrNoEcho is returned when an echo line shows no complete pulse in time.
	ErrNoEcho = errors.New("gpio: no echo")
	// ErrUnknownPin is returned for a pin that was not requested.
	ErrUnknownPin = errors.New("gpio: unknown pin")
)

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Bus drives trigger lines and samples echo and reed switch lines.
type Bus interface {
	// Pulse drives the trigger line high for width, then low again.
	// Echo waits are measured from the end of the most recent pulse.
	Pulse(trigger int, width time.Duration) error

	// Echo waits for the echo line to rise and fall again and returns how
	// long it stayed high. It returns ErrNoEcho if the pulse is not complete
	// within timeout of the last trigger pulse.
	Echo(pin int, timeout time.Duration) (time.Duration, error)

	// Level returns the raw level of an input line (true = high).
	Level(pin int) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Lines lists the offsets a Bus must request, grouped by use.
type Lines struct {
	Triggers []int
	Echoes   []int
	Levels   []int
}
