package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drawer-sensor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Unit)
	assert.Equal(t, "gpiochip0", cfg.Chip)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll)
	assert.Equal(t, ShortEchoClosed, cfg.Calibration.ShortEcho)
	assert.Equal(t, logic.DefaultCalibration(), cfg.CalibrationThresholds())
	assert.Equal(t, 60*time.Millisecond, cfg.Sensing.Settle)
	assert.Equal(t, time.Second, cfg.Detector.Debounce)
	assert.Equal(t, "drawer-sensor-1", cfg.ClientID())
	assert.Empty(t, cfg.Hub.Port)
	require.NoError(t, Validate(cfg))
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
unit: 3
poll: 250ms
calibration:
  min_cm: 4
  closed_cm: 6
  drawer_cm: 40
  short_echo: hold
sensing:
  settle: 80ms
detector:
  debounce: 2s
  deadband: 3
  heartbeat: 0s
mqtt:
  broker: tcp://broker.local:1883
  client_id: kitchen
hub:
  port: /dev/ttyUSB0
  baud: 9600
http:
  addr: ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Unit)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll)
	assert.Equal(t, logic.NewCalibration(4, 6, 40), cfg.CalibrationThresholds())
	assert.Equal(t, 80*time.Millisecond, cfg.Sensing.Settle)
	assert.Equal(t, 10*time.Microsecond, cfg.Sensing.TriggerWidth, "unset field keeps default")
	assert.Equal(t, logic.DetectorConfig{Debounce: 2 * time.Second, Deadband: 3, HoldNoise: true}, cfg.DetectorSettings())
	assert.Zero(t, cfg.Detector.Heartbeat)
	assert.Equal(t, "kitchen", cfg.ClientID())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Hub.Port)
	assert.Equal(t, 9600, cfg.Hub.Baud)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	require.NoError(t, Validate(cfg))
}

func TestLoad_PartialYAMLZeroesRestored(t *testing.T) {
	path := writeConfig(t, `
unit: 0
calibration:
  min_cm: 0
  short_echo: ""
mqtt:
  buffer_size: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Unit)
	assert.Equal(t, uint32(logic.DefaultMinCm), cfg.Calibration.MinCm)
	assert.Equal(t, ShortEchoClosed, cfg.Calibration.ShortEcho)
	assert.Equal(t, 100, cfg.MQTT.BufferSize)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "unit: [1, 2\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_CabinetOverride(t *testing.T) {
	path := writeConfig(t, `
cabinets:
  - id: 9
    mask: 3
    pins: [12, 13, 19, -1]
  - id: 8
    trigger: -1
    drawers:
      o: {kind: digital_inverted, pin: 20}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	cabs, err := cfg.CabinetTable()
	require.NoError(t, err)
	require.Len(t, cabs, 2)

	assert.Equal(t, logic.FromSignedPins(9, 0b011, [4]int{12, 13, 19, -1}), cabs[0])

	assert.Equal(t, 8, cabs[1].ID)
	assert.Equal(t, logic.DrawerMask(0b100), cabs[1].Mask, "mask derived from drawers")
	assert.Equal(t, logic.NoTrigger, cabs[1].Trigger)
	assert.Equal(t, logic.DigitalInverted(20), cabs[1].Channels[logic.Top])
	assert.Equal(t, logic.Absent, cabs[1].Channels[logic.Bottom])
}

func TestUnitTables(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Units())

	for _, unit := range Units() {
		cfg := Default()
		cfg.Unit = unit
		require.NoError(t, Validate(cfg), "unit %d", unit)

		cabs, err := cfg.CabinetTable()
		require.NoError(t, err)
		_, err = ValidateCabinets(cabs)
		require.NoError(t, err, "unit %d", unit)
	}
}

func TestUnitTableReedCabinet(t *testing.T) {
	cfg := Default()
	cfg.Unit = 2

	cabs, err := cfg.CabinetTable()
	require.NoError(t, err)
	require.Len(t, cabs, 2)

	reed := cabs[1]
	assert.Equal(t, 4, reed.ID)
	assert.False(t, reed.NeedsTrigger())
	assert.Equal(t, logic.DigitalInverted(24), reed.Channels[logic.Middle])
}

func TestUnitTableIsCopy(t *testing.T) {
	table, err := UnitTable(1)
	require.NoError(t, err)
	table[0].ID = 99

	again, err := UnitTable(1)
	require.NoError(t, err)
	assert.Equal(t, 2, again[0].ID)
}

func TestUnitTableUnknown(t *testing.T) {
	_, err := UnitTable(4)
	assert.Error(t, err)

	cfg := Default()
	cfg.Unit = 4
	assert.Error(t, Validate(cfg))
}

func TestCabinetConfigErrors(t *testing.T) {
	trig := 5
	tests := []struct {
		name  string
		entry CabinetConfig
	}{
		{"short pins", CabinetConfig{ID: 1, Mask: 1, Pins: []int{5, 17}}},
		{"pins and drawers", CabinetConfig{ID: 1, Pins: []int{5, 17, -1, -1}, Drawers: map[string]ChannelConfig{"u": {Pin: 17}}}},
		{"pins and trigger", CabinetConfig{ID: 1, Mask: 1, Pins: []int{5, 17, -1, -1}, Trigger: &trig}},
		{"unknown drawer", CabinetConfig{ID: 1, Trigger: &trig, Drawers: map[string]ChannelConfig{"x": {Pin: 17}}}},
		{"unknown kind", CabinetConfig{ID: 1, Trigger: &trig, Drawers: map[string]ChannelConfig{"u": {Kind: "laser", Pin: 17}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.entry.Cabinet()
			assert.Error(t, err)
		})
	}
}
