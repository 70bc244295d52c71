package logic

// FromSignedPins converts the compact site plan notation
// [trigger, echoBottom, echoMiddle, echoTop] into a Cabinet.
//
// A negative pin is not wired. A negative trigger means the cabinet has no
// ultrasonic sensors; its wired pins are reed switches instead.
func FromSignedPins(id int, mask DrawerMask, pins [4]int) Cabinet {
	cab := Cabinet{ID: id, Mask: mask, Trigger: pins[0]}
	reed := pins[0] < 0
	if reed {
		cab.Trigger = NoTrigger
	}

	for i, d := range Drawers {
		pin := pins[i+1]
		switch {
		case pin < 0:
			cab.Channels[d] = Absent
		case reed:
			cab.Channels[d] = DigitalInverted(pin)
		default:
			cab.Channels[d] = Analog(pin)
		}
	}
	return cab
}

// SensedChannels returns the number of present, wired channels.
func (c Cabinet) SensedChannels() int {
	n := 0
	for _, d := range Drawers {
		if c.Mask.Has(d) && c.Channels[d].Kind != ChannelAbsent {
			n++
		}
	}
	return n
}
