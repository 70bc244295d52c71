package sensor

import (
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Measurer samples the channels of one cabinet.
type Measurer interface {
	MeasureCabinet(cab logic.Cabinet) []logic.Sample
}

// Sink receives each drawer report as soon as it is resolved.
type Sink interface {
	Report(r logic.Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r logic.Report)

// Report calls f(r).
func (f SinkFunc) Report(r logic.Report) { f(r) }

// Multiplexer runs measurement cycles over a cabinet table.
// Cabinets are measured one after the other; a settle delay between them
// keeps late echoes of one cabinet away from the next trigger.
type Multiplexer struct {
	measurer Measurer
	cal      logic.Calibration
	settle   time.Duration
	sink     Sink
	sleep    func(time.Duration)
}

// NewMultiplexer creates a Multiplexer.
func NewMultiplexer(m Measurer, cal logic.Calibration, settle time.Duration) *Multiplexer {
	return &Multiplexer{
		measurer: m,
		cal:      cal,
		settle:   settle,
		sleep:    time.Sleep,
	}
}

// SetSink directs every report to s as well. nil disables.
func (m *Multiplexer) SetSink(s Sink) {
	m.sink = s
}

// RunCycle measures every cabinet and returns one report per drawer slot in
// the masks, cabinet by cabinet, bottom to top. A drawer that could not be
// measured is reported Unknown; nothing aborts the cycle.
func (m *Multiplexer) RunCycle(cabinets []logic.Cabinet) []logic.Report {
	var reports []logic.Report

	for i, cab := range cabinets {
		if i > 0 && m.settle > 0 {
			m.sleep(m.settle)
		}

		var bySlot [3]*logic.Sample
		samples := m.measurer.MeasureCabinet(cab)
		for j := range samples {
			s := &samples[j]
			if s.Drawer >= logic.Bottom && s.Drawer <= logic.Top {
				bySlot[s.Drawer] = s
			}
		}

		for _, d := range logic.Drawers {
			if !cab.Mask.Has(d) {
				continue
			}
			pos := logic.Unknown
			if s := bySlot[d]; s != nil {
				pos = m.cal.ResolveSample(*s)
			}
			r := logic.Report{Cabinet: cab.ID, Drawer: d, Position: pos}
			reports = append(reports, r)
			if m.sink != nil {
				m.sink.Report(r)
			}
		}
	}

	return reports
}
