//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// NewRealBus returns an error on non-Linux platforms.
func NewRealBus(chipName string, lines Lines) (*RealBus, error) {
	return nil, errUnsupported
}

// Pulse is not implemented on non-Linux platforms.
func (b *RealBus) Pulse(trigger int, width time.Duration) error {
	return errUnsupported
}

// Echo is not implemented on non-Linux platforms.
func (b *RealBus) Echo(pin int, timeout time.Duration) (time.Duration, error) {
	return 0, errUnsupported
}

// Level is not implemented on non-Linux platforms.
func (b *RealBus) Level(pin int) (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error {
	return nil
}
