package gpio

import (
	"fmt"
	"time"
)

// NoEcho scripts a timed out echo in FakeBus.Echoes.
const NoEcho time.Duration = -1

// Op names a bus operation recorded by FakeBus.
type Op string

const (
	OpPulse Op = "pulse"
	OpEcho  Op = "echo"
	OpLevel Op = "level"
)

// Call is one recorded bus operation.
type Call struct {
	Op  Op
	Pin int
}

// FakeBus is a test double that returns scripted echo and level values.
type FakeBus struct {
	// Echoes contains scripted echo durations per echo pin.
	// Each call to Echo() consumes the next value; NoEcho means timeout.
	Echoes map[int][]time.Duration

	// Levels contains scripted raw levels per reed switch pin.
	Levels map[int][]bool

	// Calls records every operation in order.
	Calls []Call

	// PulseError, if set, will be returned by Pulse().
	PulseError error

	// ReadError, if set, will be returned by Echo() and Level().
	ReadError error

	// Closed tracks if Close was called
	Closed bool

	echoIndex  map[int]int
	levelIndex map[int]int
}

// NewFakeBus creates a FakeBus with no scripted values. The zero value is
// also usable once Echoes or Levels are set.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		Echoes:     make(map[int][]time.Duration),
		Levels:     make(map[int][]bool),
		echoIndex:  make(map[int]int),
		levelIndex: make(map[int]int),
	}
}

// Pulse records the trigger.
func (f *FakeBus) Pulse(trigger int, width time.Duration) error {
	f.Calls = append(f.Calls, Call{Op: OpPulse, Pin: trigger})
	return f.PulseError
}

// Echo returns the next scripted duration for pin.
// If values are exhausted, returns the last value repeatedly.
func (f *FakeBus) Echo(pin int, timeout time.Duration) (time.Duration, error) {
	f.Calls = append(f.Calls, Call{Op: OpEcho, Pin: pin})
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	values, ok := f.Echoes[pin]
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("echo pin %d: %w", pin, ErrUnknownPin)
	}
	if f.echoIndex == nil {
		f.echoIndex = make(map[int]int)
	}

	v := values[f.echoIndex[pin]]
	if f.echoIndex[pin] < len(values)-1 {
		f.echoIndex[pin]++
	}

	if v == NoEcho || v > timeout {
		return 0, ErrNoEcho
	}
	return v, nil
}

// Level returns the next scripted level for pin.
func (f *FakeBus) Level(pin int) (bool, error) {
	f.Calls = append(f.Calls, Call{Op: OpLevel, Pin: pin})
	if f.ReadError != nil {
		return false, f.ReadError
	}

	values, ok := f.Levels[pin]
	if !ok || len(values) == 0 {
		return false, fmt.Errorf("level pin %d: %w", pin, ErrUnknownPin)
	}
	if f.levelIndex == nil {
		f.levelIndex = make(map[int]int)
	}

	v := values[f.levelIndex[pin]]
	if f.levelIndex[pin] < len(values)-1 {
		f.levelIndex[pin]++
	}
	return v, nil
}

// PinsCalled returns the pins of all calls with the given op, in order.
func (f *FakeBus) PinsCalled(op Op) []int {
	var pins []int
	for _, c := range f.Calls {
		if c.Op == op {
			pins = append(pins, c.Pin)
		}
	}
	return pins
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds all scripts and clears recorded calls.
func (f *FakeBus) Reset() {
	f.Calls = nil
	f.Closed = false
	f.echoIndex = make(map[int]int)
	f.levelIndex = make(map[int]int)
}
