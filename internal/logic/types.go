// Package logic contains the pure drawer sensing logic: time-of-flight
// calibration, echo resolution and change detection.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Drawer identifies a drawer slot inside a cabinet.
type Drawer int

const (
	Bottom Drawer = iota
	Middle
	Top
)

// Drawers lists the slots in measurement order.
var Drawers = [3]Drawer{Bottom, Middle, Top}

// Letter returns the site plan letter for the drawer: u(nten), m(itte), o(ben).
func (d Drawer) Letter() byte {
	switch d {
	case Bottom:
		return 'u'
	case Middle:
		return 'm'
	case Top:
		return 'o'
	}
	return '?'
}

func (d Drawer) String() string {
	return string(d.Letter())
}

// DrawerFromLetter is the inverse of Letter.
func DrawerFromLetter(c byte) (Drawer, bool) {
	switch c {
	case 'u':
		return Bottom, true
	case 'm':
		return Middle, true
	case 'o':
		return Top, true
	}
	return 0, false
}

// DrawerMask is a bit set of present drawers: 1 = bottom, 2 = middle, 4 = top.
type DrawerMask uint8

// Has reports whether the drawer is present in the mask.
func (m DrawerMask) Has(d Drawer) bool {
	return m&(1<<uint(d)) != 0
}

// Count returns the number of drawers in the mask.
func (m DrawerMask) Count() int {
	n := 0
	for _, d := range Drawers {
		if m.Has(d) {
			n++
		}
	}
	return n
}

// String renders the mask as drawer letters, e.g. "umo" or "uo".
func (m DrawerMask) String() string {
	b := make([]byte, 0, 3)
	for _, d := range Drawers {
		if m.Has(d) {
			b = append(b, d.Letter())
		}
	}
	return string(b)
}

// ChannelKind is the wiring type of a drawer channel.
type ChannelKind int

const (
	// ChannelAbsent means no sensor is wired for the slot.
	ChannelAbsent ChannelKind = iota
	// ChannelAnalog is an ultrasonic echo line.
	ChannelAnalog
	// ChannelDigitalInverted is a reed switch read as a plain level.
	// Raw high = closed, raw low = open.
	ChannelDigitalInverted
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelAnalog:
		return "analog"
	case ChannelDigitalInverted:
		return "digital_inverted"
	}
	return "absent"
}

// Channel describes how one drawer is wired.
type Channel struct {
	Kind ChannelKind
	Pin  int
}

// Absent is the channel of an unwired slot.
var Absent = Channel{Kind: ChannelAbsent, Pin: -1}

// Analog returns an ultrasonic echo channel on pin.
func Analog(pin int) Channel { return Channel{Kind: ChannelAnalog, Pin: pin} }

// DigitalInverted returns a reed switch channel on pin.
func DigitalInverted(pin int) Channel { return Channel{Kind: ChannelDigitalInverted, Pin: pin} }

// NoTrigger marks a cabinet without an ultrasonic trigger line.
const NoTrigger = -1

// Cabinet is the immutable wiring of one cabinet.
type Cabinet struct {
	ID       int
	Mask     DrawerMask
	Trigger  int
	Channels [3]Channel
}

// NeedsTrigger reports whether any present drawer uses an echo channel.
func (c Cabinet) NeedsTrigger() bool {
	for _, d := range Drawers {
		if c.Mask.Has(d) && c.Channels[d].Kind == ChannelAnalog {
			return true
		}
	}
	return false
}

// EchoTimeout is the sentinel echo duration for "no echo received".
const EchoTimeout = ^uint32(0)

// Sample is one raw measurement of a drawer channel.
type Sample struct {
	Cabinet int
	Drawer  Drawer
	Kind    ChannelKind
	EchoUs  uint32 // valid for ChannelAnalog; EchoTimeout if none
	Open    bool   // valid for ChannelDigitalInverted
}

// MaxPercent is the open percentage of a fully extended drawer.
const MaxPercent = 99

// Position is the resolved open state of a drawer.
// The zero value is Unknown.
type Position struct {
	Percent uint8
	Known   bool
	// Noise is set when the echo was shorter than the minimum valid distance.
	Noise bool
}

// Unknown is the position of a disconnected, timed out or absent drawer.
var Unknown = Position{}

// Percent returns a known position, clamped to [0, MaxPercent].
func Percent(p int) Position {
	if p < 0 {
		p = 0
	}
	if p > MaxPercent {
		p = MaxPercent
	}
	return Position{Percent: uint8(p), Known: true}
}

// Closed reports whether the drawer is known to be closed.
func (p Position) Closed() bool {
	return p.Known && p.Percent == 0
}

// String renders two digits, or "??" when unknown.
func (p Position) String() string {
	if !p.Known {
		return "??"
	}
	return fmt.Sprintf("%02d", p.Percent)
}

// Key identifies a drawer within a unit.
type Key struct {
	Cabinet int
	Drawer  Drawer
}

func (k Key) String() string {
	return fmt.Sprintf("%d%c", k.Cabinet, k.Drawer.Letter())
}

// Report is the result for one drawer slot in one cycle.
type Report struct {
	Cabinet  int
	Drawer   Drawer
	Position Position
}

// Key returns the drawer key of the report.
func (r Report) Key() Key {
	return Key{Cabinet: r.Cabinet, Drawer: r.Drawer}
}

// Token renders the report as the four character hub token, e.g. "2u45".
func (r Report) Token() string {
	return r.Key().String() + r.Position.String()
}

// Index maps reports to their positions.
func Index(reports []Report) map[Key]Position {
	m := make(map[Key]Position, len(reports))
	for _, r := range reports {
		m[r.Key()] = r.Position
	}
	return m
}

// EventType represents a drawer state transition.
type EventType string

const (
	EventOpened EventType = "OPENED"
	EventClosed EventType = "CLOSED"
	EventMoved  EventType = "MOVED"
	EventLost   EventType = "LOST"
)

// Event represents a debounced drawer change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Key       Key
	From      Position
	To        Position
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Opened int
	Closed int
	Moved  int
	Lost   int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
