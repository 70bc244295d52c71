// Package config loads the daemon configuration and the cabinet table of a
// unit.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Short echo policies.
const (
	ShortEchoClosed = "closed"
	ShortEchoHold   = "hold"
)

// Config represents the daemon configuration.
type Config struct {
	Unit        int               `yaml:"unit"`
	Chip        string            `yaml:"chip"`
	Poll        time.Duration     `yaml:"poll"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Sensing     SensingConfig     `yaml:"sensing"`
	Detector    DetectorConfig    `yaml:"detector"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Hub         HubConfig         `yaml:"hub"`
	HTTP        HTTPConfig        `yaml:"http"`

	// Cabinets overrides the compiled-in table of Unit when set.
	Cabinets []CabinetConfig `yaml:"cabinets"`
}

// CalibrationConfig contains the drawer geometry in cm.
type CalibrationConfig struct {
	MinCm     uint32 `yaml:"min_cm"`
	ClosedCm  uint32 `yaml:"closed_cm"`
	DrawerCm  uint32 `yaml:"drawer_cm"`
	ShortEcho string `yaml:"short_echo"` // "closed" or "hold"
}

// SensingConfig contains trigger and echo timing.
type SensingConfig struct {
	TriggerWidth time.Duration `yaml:"trigger_width"`
	EchoMargin   time.Duration `yaml:"echo_margin"`
	Settle       time.Duration `yaml:"settle"`
}

// DetectorConfig contains change detection parameters.
type DetectorConfig struct {
	Debounce  time.Duration `yaml:"debounce"`
	Deadband  uint8         `yaml:"deadband"`
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// MQTTConfig contains broker settings.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	BufferSize int    `yaml:"buffer_size"`
}

// HubConfig contains the serial link to the hub. Empty port disables it.
type HubConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// CabinetConfig is one cabinet entry. Either Pins (site plan notation,
// negative = not wired) or Drawers (explicit channels keyed by u, m, o)
// describes the wiring.
type CabinetConfig struct {
	ID      int                      `yaml:"id"`
	Mask    uint8                    `yaml:"mask"`
	Pins    []int                    `yaml:"pins,omitempty"`
	Trigger *int                     `yaml:"trigger,omitempty"`
	Drawers map[string]ChannelConfig `yaml:"drawers,omitempty"`
}

// ChannelConfig is an explicit drawer channel.
type ChannelConfig struct {
	Kind string `yaml:"kind"` // "analog", "digital_inverted" or "absent"
	Pin  int    `yaml:"pin"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Unit: 1,
		Chip: "gpiochip0",
		Poll: 500 * time.Millisecond,
		Calibration: CalibrationConfig{
			MinCm:     logic.DefaultMinCm,
			ClosedCm:  logic.DefaultClosedCm,
			DrawerCm:  logic.DefaultDrawerCm,
			ShortEcho: ShortEchoClosed,
		},
		Sensing: SensingConfig{
			TriggerWidth: 10 * time.Microsecond,
			EchoMargin:   5 * time.Millisecond,
			Settle:       60 * time.Millisecond,
		},
		Detector: DetectorConfig{
			Debounce:  time.Second,
			Deadband:  2,
			Heartbeat: 15 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			BufferSize: 100,
		},
		Hub: HubConfig{
			Baud: 115200,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// ensureDefaults fills fields left zero by a partial file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Unit == 0 {
		c.Unit = def.Unit
	}
	if c.Chip == "" {
		c.Chip = def.Chip
	}
	if c.Poll == 0 {
		c.Poll = def.Poll
	}

	if c.Calibration.MinCm == 0 {
		c.Calibration.MinCm = def.Calibration.MinCm
	}
	if c.Calibration.ClosedCm == 0 {
		c.Calibration.ClosedCm = def.Calibration.ClosedCm
	}
	if c.Calibration.DrawerCm == 0 {
		c.Calibration.DrawerCm = def.Calibration.DrawerCm
	}
	if c.Calibration.ShortEcho == "" {
		c.Calibration.ShortEcho = def.Calibration.ShortEcho
	}

	if c.Sensing.TriggerWidth == 0 {
		c.Sensing.TriggerWidth = def.Sensing.TriggerWidth
	}
	if c.Sensing.EchoMargin == 0 {
		c.Sensing.EchoMargin = def.Sensing.EchoMargin
	}

	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}
	if c.Hub.Baud == 0 {
		c.Hub.Baud = def.Hub.Baud
	}
}

// CalibrationThresholds returns the echo thresholds.
func (c *Config) CalibrationThresholds() logic.Calibration {
	return logic.NewCalibration(c.Calibration.MinCm, c.Calibration.ClosedCm, c.Calibration.DrawerCm)
}

// DetectorSettings returns the change detector configuration.
func (c *Config) DetectorSettings() logic.DetectorConfig {
	return logic.DetectorConfig{
		Debounce:  c.Detector.Debounce,
		Deadband:  c.Detector.Deadband,
		HoldNoise: c.Calibration.ShortEcho == ShortEchoHold,
	}
}

// ClientID returns the MQTT client ID, derived from the unit if unset.
func (c *Config) ClientID() string {
	if c.MQTT.ClientID != "" {
		return c.MQTT.ClientID
	}
	return fmt.Sprintf("drawer-sensor-%d", c.Unit)
}
