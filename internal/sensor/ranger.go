// Package sensor performs the drawer measurements: one shared trigger pulse
// per cabinet followed by sequential sampling of each drawer channel.
package sensor

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/drawer-sensor/internal/gpio"
	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Default timing of a measurement.
const (
	DefaultTriggerWidth = 10 * time.Microsecond
	DefaultEchoMargin   = 5 * time.Millisecond
	DefaultSettle       = 60 * time.Millisecond
)

// Config tunes trigger and echo timing.
type Config struct {
	// TriggerWidth is the high time of the trigger pulse (at least 10µs).
	TriggerWidth time.Duration
	// EchoMargin is added to the maximum echo time to bound each echo wait.
	EchoMargin time.Duration
}

// Ranger measures the channels of one cabinet at a time.
type Ranger struct {
	bus    gpio.Bus
	width  time.Duration
	window time.Duration
}

// NewRanger creates a Ranger on bus. Zero config values use the defaults.
func NewRanger(bus gpio.Bus, cal logic.Calibration, cfg Config) *Ranger {
	if cfg.TriggerWidth < DefaultTriggerWidth {
		cfg.TriggerWidth = DefaultTriggerWidth
	}
	if cfg.EchoMargin <= 0 {
		cfg.EchoMargin = DefaultEchoMargin
	}
	return &Ranger{
		bus:    bus,
		width:  cfg.TriggerWidth,
		window: cal.EchoWindow(cfg.EchoMargin),
	}
}

// EchoWindow returns the bound of each echo wait.
func (r *Ranger) EchoWindow() time.Duration {
	return r.window
}

// MeasureEcho performs one ranging measurement on a single echo channel:
// trigger pulse, then echo. Returns logic.EchoTimeout if no echo arrives.
func (r *Ranger) MeasureEcho(trigger, echo int) uint32 {
	if err := r.bus.Pulse(trigger, r.width); err != nil {
		log.Printf("sensor: trigger pin %d: %v", trigger, err)
		return logic.EchoTimeout
	}
	return r.echo(echo)
}

// MeasureCabinet triggers the cabinet once and samples every present drawer,
// bottom to top. Absent channels are skipped without touching the bus but
// still produce a sample so the slot is reported.
func (r *Ranger) MeasureCabinet(cab logic.Cabinet) []logic.Sample {
	samples := make([]logic.Sample, 0, cab.Mask.Count())

	triggered := false
	if cab.NeedsTrigger() {
		if err := r.bus.Pulse(cab.Trigger, r.width); err != nil {
			log.Printf("sensor: cabinet %d trigger pin %d: %v", cab.ID, cab.Trigger, err)
		} else {
			triggered = true
		}
	}

	for _, d := range logic.Drawers {
		if !cab.Mask.Has(d) {
			continue
		}
		ch := cab.Channels[d]
		s := logic.Sample{Cabinet: cab.ID, Drawer: d, Kind: ch.Kind, EchoUs: logic.EchoTimeout}

		switch ch.Kind {
		case logic.ChannelAnalog:
			if triggered {
				s.EchoUs = r.echo(ch.Pin)
			}
		case logic.ChannelDigitalInverted:
			high, err := r.bus.Level(ch.Pin)
			if err != nil {
				log.Printf("sensor: cabinet %d reed pin %d: %v", cab.ID, ch.Pin, err)
				s.Kind = logic.ChannelAbsent
				break
			}
			s.Open = !high
		}

		samples = append(samples, s)
	}

	return samples
}

func (r *Ranger) echo(pin int) uint32 {
	d, err := r.bus.Echo(pin, r.window)
	if err != nil {
		if !errors.Is(err, gpio.ErrNoEcho) {
			log.Printf("sensor: echo pin %d: %v", pin, err)
		}
		return logic.EchoTimeout
	}
	return durationToMicros(d)
}

func durationToMicros(d time.Duration) uint32 {
	if d < 0 {
		return 0
	}
	us := d / time.Microsecond
	if us >= time.Duration(logic.EchoTimeout) {
		return logic.EchoTimeout - 1
	}
	return uint32(us)
}
