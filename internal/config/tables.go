package config

import (
	"fmt"
	"sort"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Compiled-in cabinet tables, one per unit. Pins are BCM line offsets in
// [trigger, bottom, middle, top] order; negative means not wired.
var unitTables = map[int][]CabinetConfig{
	1: {
		{ID: 2, Mask: 0b111, Pins: []int{5, 17, 27, 22}},
		{ID: 3, Mask: 0b111, Pins: []int{6, 23, 24, 25}},
		{ID: 1, Mask: 0b001, Pins: []int{16, 26, -1, -1}},
	},
	2: {
		{ID: 5, Mask: 0b111, Pins: []int{5, 17, 27, 22}},
		// Reed switches on the middle drawer only.
		{ID: 4, Mask: 0b010, Pins: []int{-6, -23, 24, -25}},
	},
	3: {
		{ID: 6, Mask: 0b111, Pins: []int{5, 17, 27, 22}},
		{ID: 7, Mask: 0b101, Pins: []int{6, 23, -24, 25}},
	},
}

// Units returns the units with a compiled-in table, ascending.
func Units() []int {
	units := make([]int, 0, len(unitTables))
	for u := range unitTables {
		units = append(units, u)
	}
	sort.Ints(units)
	return units
}

// UnitTable returns a copy of the compiled-in table of unit.
func UnitTable(unit int) ([]CabinetConfig, error) {
	table, ok := unitTables[unit]
	if !ok {
		return nil, fmt.Errorf("no cabinet table for unit %d", unit)
	}
	out := make([]CabinetConfig, len(table))
	copy(out, table)
	return out, nil
}

// CabinetTable returns the cabinets this unit polls: the configured override
// if any, otherwise the compiled-in table of the unit.
func (c *Config) CabinetTable() ([]logic.Cabinet, error) {
	entries := c.Cabinets
	if len(entries) == 0 {
		var err error
		if entries, err = UnitTable(c.Unit); err != nil {
			return nil, err
		}
	}

	cabs := make([]logic.Cabinet, 0, len(entries))
	for i, e := range entries {
		cab, err := e.Cabinet()
		if err != nil {
			return nil, fmt.Errorf("cabinets[%d]: %w", i, err)
		}
		cabs = append(cabs, cab)
	}
	return cabs, nil
}

// Cabinet converts the entry into a logic.Cabinet.
func (e CabinetConfig) Cabinet() (logic.Cabinet, error) {
	if len(e.Drawers) > 0 {
		if len(e.Pins) > 0 {
			return logic.Cabinet{}, fmt.Errorf("cabinet %d: pins and drawers are mutually exclusive", e.ID)
		}
		return e.explicit()
	}

	if len(e.Pins) != 4 {
		return logic.Cabinet{}, fmt.Errorf("cabinet %d: pins needs 4 entries [trigger, u, m, o], got %d", e.ID, len(e.Pins))
	}
	var pins [4]int
	copy(pins[:], e.Pins)
	if e.Trigger != nil {
		return logic.Cabinet{}, fmt.Errorf("cabinet %d: trigger is part of pins", e.ID)
	}
	return logic.FromSignedPins(e.ID, logic.DrawerMask(e.Mask), pins), nil
}

func (e CabinetConfig) explicit() (logic.Cabinet, error) {
	cab := logic.Cabinet{
		ID:       e.ID,
		Mask:     logic.DrawerMask(e.Mask),
		Trigger:  logic.NoTrigger,
		Channels: [3]logic.Channel{logic.Absent, logic.Absent, logic.Absent},
	}
	if e.Trigger != nil {
		cab.Trigger = *e.Trigger
	}

	deriveMask := e.Mask == 0
	for name, ch := range e.Drawers {
		if len(name) != 1 {
			return logic.Cabinet{}, fmt.Errorf("cabinet %d: unknown drawer %q", e.ID, name)
		}
		d, ok := logic.DrawerFromLetter(name[0])
		if !ok {
			return logic.Cabinet{}, fmt.Errorf("cabinet %d: unknown drawer %q", e.ID, name)
		}

		switch ch.Kind {
		case "analog", "":
			cab.Channels[d] = logic.Analog(ch.Pin)
		case "digital_inverted":
			cab.Channels[d] = logic.DigitalInverted(ch.Pin)
		case "absent":
			cab.Channels[d] = logic.Absent
		default:
			return logic.Cabinet{}, fmt.Errorf("cabinet %d drawer %s: unknown kind %q", e.ID, name, ch.Kind)
		}
		if deriveMask {
			cab.Mask |= 1 << uint(d)
		}
	}
	return cab, nil
}
