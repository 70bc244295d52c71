package logic

// Resolve maps a round trip echo duration to an open position.
//
// Echoes shorter than MinUs are reported closed but flagged as Noise so a
// caller can decide to hold the previous reading instead.
func (c Calibration) Resolve(echoUs uint32) Position {
	switch {
	case echoUs == EchoTimeout:
		return Unknown
	case echoUs < c.MinUs:
		p := Percent(0)
		p.Noise = true
		return p
	case echoUs <= c.ClosedUs:
		return Percent(0)
	case echoUs >= c.MaxUs:
		return Percent(MaxPercent)
	}

	span := uint64(c.MaxUs - c.ClosedUs)
	off := uint64(echoUs - c.ClosedUs)
	return Percent(int((off*MaxPercent + span/2) / span))
}

// ResolveSample resolves a sample according to its channel kind.
func (c Calibration) ResolveSample(s Sample) Position {
	switch s.Kind {
	case ChannelAnalog:
		return c.Resolve(s.EchoUs)
	case ChannelDigitalInverted:
		if s.Open {
			return Percent(MaxPercent)
		}
		return Percent(0)
	}
	return Unknown
}
