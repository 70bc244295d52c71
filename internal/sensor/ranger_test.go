package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/drawer-sensor/internal/gpio"
	"github.com/sweeney/drawer-sensor/internal/logic"
)

var testCal = logic.Calibration{MinUs: 174, ClosedUs: 290, MaxUs: 3088}

func us(n int) time.Duration { return time.Duration(n) * time.Microsecond }

func TestNewRangerDefaults(t *testing.T) {
	r := NewRanger(gpio.NewFakeBus(), testCal, Config{})
	assert.Equal(t, DefaultTriggerWidth, r.width)
	assert.Equal(t, us(3088)+DefaultEchoMargin, r.EchoWindow())

	r = NewRanger(gpio.NewFakeBus(), testCal, Config{TriggerWidth: time.Microsecond})
	assert.Equal(t, DefaultTriggerWidth, r.width, "trigger width below 10µs is raised")
}

func TestMeasureEcho(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[17] = []time.Duration{us(1689), gpio.NoEcho}
	r := NewRanger(bus, testCal, Config{})

	assert.Equal(t, uint32(1689), r.MeasureEcho(5, 17))
	assert.Equal(t, logic.EchoTimeout, r.MeasureEcho(5, 17))

	assert.Equal(t, []gpio.Call{
		{Op: gpio.OpPulse, Pin: 5}, {Op: gpio.OpEcho, Pin: 17},
		{Op: gpio.OpPulse, Pin: 5}, {Op: gpio.OpEcho, Pin: 17},
	}, bus.Calls)
}

func TestMeasureEchoPulseFailure(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[17] = []time.Duration{us(500)}
	bus.PulseError = errors.New("line busy")
	r := NewRanger(bus, testCal, Config{})

	assert.Equal(t, logic.EchoTimeout, r.MeasureEcho(5, 17))
	assert.Empty(t, bus.PinsCalled(gpio.OpEcho), "no echo wait without a pulse")
}

func TestMeasureCabinetTriggersOnce(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[17] = []time.Duration{us(290)}
	bus.Echoes[27] = []time.Duration{us(1689)}
	bus.Echoes[22] = []time.Duration{gpio.NoEcho}
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(2, 0b111, [4]int{5, 17, 27, 22})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 3)
	assert.Equal(t, []int{5}, bus.PinsCalled(gpio.OpPulse))
	assert.Equal(t, []int{17, 27, 22}, bus.PinsCalled(gpio.OpEcho))

	assert.Equal(t, logic.Bottom, samples[0].Drawer)
	assert.Equal(t, uint32(290), samples[0].EchoUs)
	assert.Equal(t, logic.Middle, samples[1].Drawer)
	assert.Equal(t, uint32(1689), samples[1].EchoUs)
	assert.Equal(t, logic.Top, samples[2].Drawer)
	assert.Equal(t, logic.EchoTimeout, samples[2].EchoUs)
}

func TestMeasureCabinetSkipsAbsentChannels(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[23] = []time.Duration{us(400)}
	bus.Echoes[25] = []time.Duration{us(800)}
	r := NewRanger(bus, testCal, Config{})

	// Mask includes the middle drawer, but its pin is not wired.
	cab := logic.FromSignedPins(7, 0b111, [4]int{6, 23, -24, 25})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 3)
	assert.Equal(t, []int{23, 25}, bus.PinsCalled(gpio.OpEcho))
	assert.Equal(t, logic.ChannelAbsent, samples[1].Kind)
	assert.Equal(t, logic.Middle, samples[1].Drawer)
}

func TestMeasureCabinetIgnoresUnmaskedChannels(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[23] = []time.Duration{us(400)}
	bus.Echoes[25] = []time.Duration{us(800)}
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(7, 0b001, [4]int{6, 23, 24, 25})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 1)
	assert.Equal(t, []int{23}, bus.PinsCalled(gpio.OpEcho))
}

func TestMeasureCabinetReedSwitch(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Levels[24] = []bool{true, false}
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(4, 0b010, [4]int{-6, -23, 24, -25})

	samples := r.MeasureCabinet(cab)
	require.Len(t, samples, 1)
	assert.Equal(t, logic.ChannelDigitalInverted, samples[0].Kind)
	assert.False(t, samples[0].Open, "raw high is closed")

	samples = r.MeasureCabinet(cab)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Open, "raw low is open")

	assert.Empty(t, bus.PinsCalled(gpio.OpPulse), "reed cabinet is never triggered")
}

func TestMeasureCabinetReedReadError(t *testing.T) {
	bus := gpio.NewFakeBus()
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(4, 0b010, [4]int{-6, -23, 24, -25})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 1)
	assert.Equal(t, logic.ChannelAbsent, samples[0].Kind, "unreadable reed switch degrades to unknown")
}

func TestMeasureCabinetPulseFailure(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.Echoes[17] = []time.Duration{us(400)}
	bus.PulseError = errors.New("line busy")
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(2, 0b001, [4]int{5, 17, -1, -1})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 1)
	assert.Equal(t, logic.EchoTimeout, samples[0].EchoUs)
	assert.Empty(t, bus.PinsCalled(gpio.OpEcho))
}

func TestMeasureCabinetEchoError(t *testing.T) {
	bus := gpio.NewFakeBus()
	bus.ReadError = errors.New("io error")
	r := NewRanger(bus, testCal, Config{})

	cab := logic.FromSignedPins(2, 0b001, [4]int{5, 17, -1, -1})
	samples := r.MeasureCabinet(cab)

	require.Len(t, samples, 1)
	assert.Equal(t, logic.EchoTimeout, samples[0].EchoUs)
}

func TestDurationToMicros(t *testing.T) {
	assert.Equal(t, uint32(0), durationToMicros(-time.Second))
	assert.Equal(t, uint32(1689), durationToMicros(us(1689)+500*time.Nanosecond))
	assert.Equal(t, logic.EchoTimeout-1, durationToMicros(3*time.Hour))
}
