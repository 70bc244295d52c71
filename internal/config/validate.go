package config

import (
	"errors"
	"fmt"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Table limits.
const (
	MaxCabinets = 3
	MaxChannels = 7
)

// Validate checks the configuration and the cabinet table it selects.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %s", cfg.Poll)
	}
	if cfg.Detector.Debounce < 0 {
		return fmt.Errorf("detector.debounce must not be negative, got %s", cfg.Detector.Debounce)
	}
	if cfg.Detector.Heartbeat < 0 {
		return fmt.Errorf("detector.heartbeat must not be negative, got %s", cfg.Detector.Heartbeat)
	}
	if cfg.Detector.Deadband > logic.MaxPercent {
		return fmt.Errorf("detector.deadband must be at most %d, got %d", logic.MaxPercent, cfg.Detector.Deadband)
	}

	switch cfg.Calibration.ShortEcho {
	case ShortEchoClosed, ShortEchoHold:
	default:
		return fmt.Errorf("calibration.short_echo must be %q or %q, got %q",
			ShortEchoClosed, ShortEchoHold, cfg.Calibration.ShortEcho)
	}
	if cfg.Calibration.MinCm == 0 {
		return errors.New("calibration.min_cm must be positive")
	}
	if cal := cfg.CalibrationThresholds(); !cal.Valid() {
		return fmt.Errorf("calibration thresholds not ordered: min %dµs, closed %dµs, max %dµs",
			cal.MinUs, cal.ClosedUs, cal.MaxUs)
	}

	if cfg.Sensing.TriggerWidth < 0 || cfg.Sensing.EchoMargin < 0 || cfg.Sensing.Settle < 0 {
		return errors.New("sensing durations must not be negative")
	}

	if cfg.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if cfg.MQTT.BufferSize < 0 {
		return fmt.Errorf("mqtt.buffer_size must not be negative, got %d", cfg.MQTT.BufferSize)
	}
	if cfg.Hub.Port != "" && cfg.Hub.Baud <= 0 {
		return fmt.Errorf("hub.baud must be positive, got %d", cfg.Hub.Baud)
	}

	if _, ok := unitTables[cfg.Unit]; !ok && len(cfg.Cabinets) == 0 {
		return fmt.Errorf("unit must be one of %v, got %d", Units(), cfg.Unit)
	}

	cabs, err := cfg.CabinetTable()
	if err != nil {
		return err
	}
	_, err = ValidateCabinets(cabs)
	return err
}

// ValidateCabinets checks a cabinet table. Problems that only degrade a
// drawer to unknown are returned as warnings.
func ValidateCabinets(cabs []logic.Cabinet) ([]string, error) {
	if len(cabs) == 0 {
		return nil, errors.New("cabinet table is empty")
	}
	if len(cabs) > MaxCabinets {
		return nil, fmt.Errorf("at most %d cabinets supported, got %d", MaxCabinets, len(cabs))
	}

	var warnings []string
	ids := make(map[int]bool)
	pins := make(map[int]string)
	channels := 0

	claim := func(pin int, owner string) error {
		if prev, ok := pins[pin]; ok {
			return fmt.Errorf("pin %d used by %s and %s", pin, prev, owner)
		}
		pins[pin] = owner
		return nil
	}

	for _, cab := range cabs {
		if cab.ID <= 0 {
			return nil, fmt.Errorf("cabinet id must be positive, got %d", cab.ID)
		}
		if ids[cab.ID] {
			return nil, fmt.Errorf("duplicate cabinet id %d", cab.ID)
		}
		ids[cab.ID] = true

		if cab.Mask == 0 || cab.Mask > 0b111 {
			return nil, fmt.Errorf("cabinet %d: mask must be between 1 and 7, got %d", cab.ID, cab.Mask)
		}

		if cab.NeedsTrigger() {
			if cab.Trigger < 0 {
				return nil, fmt.Errorf("cabinet %d: echo channels need a trigger pin", cab.ID)
			}
			if err := claim(cab.Trigger, fmt.Sprintf("cabinet %d trigger", cab.ID)); err != nil {
				return nil, err
			}
		}

		for _, d := range logic.Drawers {
			if !cab.Mask.Has(d) {
				continue
			}
			ch := cab.Channels[d]
			key := logic.Key{Cabinet: cab.ID, Drawer: d}
			if ch.Kind == logic.ChannelAbsent {
				warnings = append(warnings, fmt.Sprintf("drawer %s is in the mask but not wired, it will report unknown", key))
				continue
			}
			if ch.Pin < 0 {
				return nil, fmt.Errorf("drawer %s: invalid pin %d", key, ch.Pin)
			}
			if err := claim(ch.Pin, "drawer "+key.String()); err != nil {
				return nil, err
			}
			channels++
		}
	}

	if channels > MaxChannels {
		return nil, fmt.Errorf("at most %d sensed channels supported, got %d", MaxChannels, channels)
	}

	return warnings, nil
}
