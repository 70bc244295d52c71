package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/drawer-sensor/internal/gpio"
	"github.com/sweeney/drawer-sensor/internal/logic"
)

func twoCabinets() []logic.Cabinet {
	return []logic.Cabinet{
		logic.FromSignedPins(2, 0b111, [4]int{5, 17, 27, 22}),
		logic.FromSignedPins(7, 0b101, [4]int{6, 23, -24, 25}),
	}
}

func newTestMultiplexer(bus *gpio.FakeBus) (*Multiplexer, *[]time.Duration) {
	m := NewMultiplexer(NewRanger(bus, testCal, Config{}), testCal, DefaultSettle)
	var slept []time.Duration
	m.sleep = func(d time.Duration) { slept = append(slept, d) }
	return m, &slept
}

func TestRunCycleReportsEveryDrawer(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[17] = []time.Duration{us(290)}
	bus.Echoes[27] = []time.Duration{us(1689)}
	bus.Echoes[22] = []time.Duration{us(3088)}
	bus.Echoes[23] = []time.Duration{us(5000)}
	bus.Echoes[25] = []time.Duration{us(100)}
	m, slept := newTestMultiplexer(bus)

	reports := m.RunCycle(twoCabinets())

	want := []logic.Report{
		{Cabinet: 2, Drawer: logic.Bottom, Position: logic.Percent(0)},
		{Cabinet: 2, Drawer: logic.Middle, Position: logic.Percent(50)},
		{Cabinet: 2, Drawer: logic.Top, Position: logic.Percent(99)},
		{Cabinet: 7, Drawer: logic.Bottom, Position: logic.Percent(99)},
		{Cabinet: 7, Drawer: logic.Top, Position: logic.Position{Known: true, Noise: true}},
	}
	assert.Equal(t, want, reports)
	assert.Equal(t, []time.Duration{DefaultSettle}, *slept, "settle once between the two cabinets")
}

func TestRunCycleTimeoutsDoNotAbort(t *testing.T) {
	bus := gpio.NewFakeBus()
	for _, pin := range []int{17, 27, 22, 23, 25} {
		bus.Echoes[pin] = []time.Duration{gpio.NoEcho}
	}
	m, _ := newTestMultiplexer(bus)

	reports := m.RunCycle(twoCabinets())

	require.Len(t, reports, 5)
	keys := make(map[logic.Key]bool)
	for _, r := range reports {
		assert.False(t, r.Position.Known, "drawer %v should be unknown", r.Key())
		keys[r.Key()] = true
	}
	assert.Len(t, keys, 5, "keys must be distinct")
}

func TestRunCycleAbsentChannelReportedUnknown(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[23] = []time.Duration{us(290)}
	bus.Echoes[25] = []time.Duration{us(290)}
	m, _ := newTestMultiplexer(bus)

	cabs := []logic.Cabinet{logic.FromSignedPins(7, 0b111, [4]int{6, 23, -24, 25})}
	reports := m.RunCycle(cabs)

	require.Len(t, reports, 3)
	assert.Equal(t, logic.Middle, reports[1].Drawer)
	assert.Equal(t, logic.Unknown, reports[1].Position)
	assert.NotContains(t, bus.PinsCalled(gpio.OpEcho), 24)
	assert.NotContains(t, bus.PinsCalled(gpio.OpEcho), -24)
}

func TestRunCycleMissingSampleReportedUnknown(t *testing.T) {
	m := NewMultiplexer(measurerFunc(func(cab logic.Cabinet) []logic.Sample {
		return nil
	}), testCal, 0)

	reports := m.RunCycle(twoCabinets())
	require.Len(t, reports, 5)
	for _, r := range reports {
		assert.Equal(t, logic.Unknown, r.Position)
	}
}

func TestRunCycleSink(t *testing.T) {
	bus := gpio.NewFakeBus()
	for _, pin := range []int{17, 27, 22, 23, 25} {
		bus.Echoes[pin] = []time.Duration{us(290)}
	}
	m, _ := newTestMultiplexer(bus)

	var got []string
	m.SetSink(SinkFunc(func(r logic.Report) { got = append(got, r.Token()) }))

	m.RunCycle(twoCabinets())
	assert.Equal(t, []string{"2u00", "2m00", "2o00", "7u00", "7o00"}, got)
}

func TestRunCycleChannelsNeverInterleave(t *testing.T) {
	bus := gpio.NewFakeBus()
	for _, pin := range []int{17, 27, 22, 23, 25} {
		bus.Echoes[pin] = []time.Duration{us(500)}
	}
	m, _ := newTestMultiplexer(bus)

	m.RunCycle(twoCabinets())

	// Each cabinet's echoes are read before the next cabinet is triggered.
	want := []gpio.Call{
		{Op: gpio.OpPulse, Pin: 5},
		{Op: gpio.OpEcho, Pin: 17}, {Op: gpio.OpEcho, Pin: 27}, {Op: gpio.OpEcho, Pin: 22},
		{Op: gpio.OpPulse, Pin: 6},
		{Op: gpio.OpEcho, Pin: 23}, {Op: gpio.OpEcho, Pin: 25},
	}
	assert.Equal(t, want, bus.Calls)
}

func TestRunCycleEmptyTable(t *testing.T) {
	m, slept := newTestMultiplexer(gpio.NewFakeBus())
	assert.Empty(t, m.RunCycle(nil))
	assert.Empty(t, *slept)
}

type measurerFunc func(cab logic.Cabinet) []logic.Sample

func (f measurerFunc) MeasureCabinet(cab logic.Cabinet) []logic.Sample { return f(cab) }
