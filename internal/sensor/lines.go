package sensor

import (
	"github.com/sweeney/drawer-sensor/internal/gpio"
	"github.com/sweeney/drawer-sensor/internal/logic"
)

// Lines returns the GPIO lines the cabinet table uses. Unmasked and absent
// channels are not requested.
func Lines(cabinets []logic.Cabinet) gpio.Lines {
	var lines gpio.Lines
	for _, cab := range cabinets {
		if cab.NeedsTrigger() {
			lines.Triggers = append(lines.Triggers, cab.Trigger)
		}
		for _, d := range logic.Drawers {
			if !cab.Mask.Has(d) {
				continue
			}
			ch := cab.Channels[d]
			switch ch.Kind {
			case logic.ChannelAnalog:
				lines.Echoes = append(lines.Echoes, ch.Pin)
			case logic.ChannelDigitalInverted:
				lines.Levels = append(lines.Levels, ch.Pin)
			}
		}
	}
	return lines
}
