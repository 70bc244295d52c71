//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// echoBuffer holds edge events of one echo line between trigger and read.
const echoBuffer = 16

type echoLine struct {
	line   *gpiocdev.Line
	events chan gpiocdev.LineEvent
}

// RealBus drives actual hardware using Linux GPIO character device.
// Echo edges are timestamped by the kernel, so all echo lines of a cabinet
// are captured from a single trigger pulse even though they are read one
// after the other.
type RealBus struct {
	chip     *gpiocdev.Chip
	triggers map[int]*gpiocdev.Line
	echoes   map[int]*echoLine
	levels   map[int]*gpiocdev.Line
	pulsedAt time.Time
}

// NewRealBus requests the given lines on chip.
func NewRealBus(chipName string, lines Lines) (*RealBus, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("drawer-sensor"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealBus{
		chip:     chip,
		triggers: make(map[int]*gpiocdev.Line),
		echoes:   make(map[int]*echoLine),
		levels:   make(map[int]*gpiocdev.Line),
	}

	for _, pin := range lines.Triggers {
		if _, ok := b.triggers[pin]; ok {
			continue
		}
		l, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request trigger pin %d: %w", pin, err)
		}
		b.triggers[pin] = l
	}

	for _, pin := range lines.Echoes {
		el := &echoLine{events: make(chan gpiocdev.LineEvent, echoBuffer)}
		l, err := chip.RequestLine(pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullDown,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(el.handle))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request echo pin %d: %w", pin, err)
		}
		el.line = l
		b.echoes[pin] = el
	}

	// Reed switches pull the line to ground when the magnet is near.
	for _, pin := range lines.Levels {
		l, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request level pin %d: %w", pin, err)
		}
		b.levels[pin] = l
	}

	return b, nil
}

// handle runs on the gpiocdev watcher goroutine. It must not block.
func (e *echoLine) handle(evt gpiocdev.LineEvent) {
	select {
	case e.events <- evt:
	default:
	}
}

func (e *echoLine) drain() {
	for {
		select {
		case <-e.events:
		default:
			return
		}
	}
}

// Pulse drives the trigger line high for width.
func (b *RealBus) Pulse(trigger int, width time.Duration) error {
	l, ok := b.triggers[trigger]
	if !ok {
		return fmt.Errorf("trigger pin %d: %w", trigger, ErrUnknownPin)
	}

	// Forget edges left over from an earlier cycle or a foreign trigger.
	for _, e := range b.echoes {
		e.drain()
	}

	if err := l.SetValue(1); err != nil {
		return fmt.Errorf("set trigger pin %d: %w", trigger, err)
	}
	spin(width)
	if err := l.SetValue(0); err != nil {
		return fmt.Errorf("clear trigger pin %d: %w", trigger, err)
	}
	b.pulsedAt = time.Now()
	return nil
}

// Echo returns the high time of the echo line after the last pulse.
func (b *RealBus) Echo(pin int, timeout time.Duration) (time.Duration, error) {
	e, ok := b.echoes[pin]
	if !ok {
		return 0, fmt.Errorf("echo pin %d: %w", pin, ErrUnknownPin)
	}

	remaining := time.Until(b.pulsedAt.Add(timeout))
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	return waitEcho(e.events, timer.C, timeout)
}

// waitEcho measures the first complete pulse on events. Edges already
// buffered are consumed before the deadline is considered, so an echo that
// arrived while an earlier line was read is never lost to an expired timer.
// A pulse longer than timeout by kernel timestamps is no echo.
func waitEcho(events <-chan gpiocdev.LineEvent, deadline <-chan time.Time, timeout time.Duration) (time.Duration, error) {
	var p pulse
	for {
		select {
		case evt := <-events:
			if d, done := p.edge(evt); done {
				return checkWidth(d, timeout)
			}
			continue
		default:
		}

		select {
		case evt := <-events:
			if d, done := p.edge(evt); done {
				return checkWidth(d, timeout)
			}
		case <-deadline:
			return 0, ErrNoEcho
		}
	}
}

type pulse struct {
	rise  time.Duration
	risen bool
}

// edge feeds one event and reports the width once the falling edge arrives.
func (p *pulse) edge(evt gpiocdev.LineEvent) (time.Duration, bool) {
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		p.rise = evt.Timestamp
		p.risen = true
	case gpiocdev.LineEventFallingEdge:
		if p.risen {
			return evt.Timestamp - p.rise, true
		}
	}
	return 0, false
}

func checkWidth(d, timeout time.Duration) (time.Duration, error) {
	if d > timeout {
		return 0, ErrNoEcho
	}
	return d, nil
}

// Level returns the raw level of a reed switch line.
func (b *RealBus) Level(pin int) (bool, error) {
	l, ok := b.levels[pin]
	if !ok {
		return false, fmt.Errorf("level pin %d: %w", pin, ErrUnknownPin)
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// Reconfigures trigger pins to input with pull-down (matching Pi boot
// defaults) before closing to ensure clean state for system shutdown/reboot.
func (b *RealBus) Close() error {
	var errs []error

	for pin, l := range b.triggers {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure trigger pin %d: %w", pin, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger pin %d: %w", pin, err))
		}
	}
	for pin, e := range b.echoes {
		if e.line == nil {
			continue
		}
		if err := e.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo pin %d: %w", pin, err))
		}
	}
	for pin, l := range b.levels {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close level pin %d: %w", pin, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// spin busy-waits; time.Sleep cannot resolve a 10µs trigger pulse.
func spin(d time.Duration) {
	for start := time.Now(); time.Since(start) < d; {
	}
}
