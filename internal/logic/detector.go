package logic

import "time"

// DetectorConfig tunes change detection.
type DetectorConfig struct {
	// Debounce is how long a new position must persist before it is reported.
	Debounce time.Duration
	// Deadband is the largest percent change still considered the same position.
	Deadband uint8
	// HoldNoise keeps the stable position when an echo is flagged as Noise.
	HoldNoise bool
}

// Input represents the reports of a single measurement cycle.
type Input struct {
	Reports []Report
	Time    time.Time
}

// DrawerState tracks debounce state for a single drawer.
type DrawerState struct {
	// Current stable (debounced) position
	Stable Position
	// Pending position during debounce
	Pending Position
	// Whether Pending holds a candidate
	HasPending bool
	// Time when pending position was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Detector tracks drawer positions and detects debounced changes.
type Detector struct {
	cfg           DetectorConfig
	drawers       map[Key]*DrawerState
	order         []Key
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a change detector.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(cfg DetectorConfig, startTime time.Time) *Detector {
	return &Detector{
		cfg:           cfg,
		drawers:       make(map[Key]*DrawerState),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes the reports of one cycle and returns any events that should
// be emitted, in report order. A drawer emits nothing until its own baseline
// is established.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	for _, r := range input.Reports {
		key := r.Key()
		st, ok := d.drawers[key]
		if !ok {
			st = &DrawerState{}
			d.drawers[key] = st
			d.order = append(d.order, key)
		}

		from := st.Stable
		if t := d.processDrawer(st, r.Position, input.Time); t != nil {
			events = append(events, Event{
				Timestamp: input.Time,
				Type:      *t,
				Key:       key,
				From:      from,
				To:        st.Stable,
			})
		}
	}

	for _, e := range events {
		switch e.Type {
		case EventOpened:
			d.eventCounts.Opened++
		case EventClosed:
			d.eventCounts.Closed++
		case EventMoved:
			d.eventCounts.Moved++
		case EventLost:
			d.eventCounts.Lost++
		}
	}

	return events
}

// processDrawer handles debounce logic for a single drawer.
// Returns the event type if a change was committed, nil otherwise.
func (d *Detector) processDrawer(st *DrawerState, pos Position, now time.Time) *EventType {
	if pos.Noise && d.cfg.HoldNoise && st.Baselined {
		pos = st.Stable
	}
	pos.Noise = false

	// First time seeing this drawer
	if !st.Baselined {
		if !st.HasPending || !d.same(st.Pending, pos) {
			st.Pending = pos
			st.HasPending = true
			st.PendingSince = now
		}
		if now.Sub(st.PendingSince) >= d.cfg.Debounce {
			st.Stable = pos
			st.Baselined = true
			st.HasPending = false
		}
		return nil
	}

	if d.same(st.Stable, pos) {
		st.HasPending = false
		return nil
	}

	if !st.HasPending || !d.same(st.Pending, pos) {
		st.Pending = pos
		st.HasPending = true
		st.PendingSince = now
	}

	if now.Sub(st.PendingSince) >= d.cfg.Debounce {
		old := st.Stable
		st.Stable = pos
		st.HasPending = false
		return eventTypeForChange(old, pos)
	}

	return nil
}

// same reports whether two positions are equal within the deadband.
// Closed and unknown are never within the deadband of anything else.
func (d *Detector) same(a, b Position) bool {
	if a.Known != b.Known {
		return false
	}
	if !a.Known {
		return true
	}
	if a.Closed() != b.Closed() {
		return false
	}
	diff := int(a.Percent) - int(b.Percent)
	if diff < 0 {
		diff = -diff
	}
	return diff <= int(d.cfg.Deadband)
}

func eventTypeForChange(from, to Position) *EventType {
	var event EventType
	switch {
	case !to.Known:
		event = EventLost
	case to.Closed():
		event = EventClosed
	case !from.Known || from.Closed():
		event = EventOpened
	default:
		event = EventMoved
	}
	return &event
}

// IsBaselined returns whether every drawer seen so far has a baseline.
func (d *Detector) IsBaselined() bool {
	if len(d.order) == 0 {
		return false
	}
	for _, k := range d.order {
		if !d.drawers[k].Baselined {
			return false
		}
	}
	return true
}

// CurrentState returns the stable positions in first-seen order.
// Drawers without a baseline are reported Unknown.
func (d *Detector) CurrentState() []Report {
	out := make([]Report, 0, len(d.order))
	for _, k := range d.order {
		st := d.drawers[k]
		pos := Unknown
		if st.Baselined {
			pos = st.Stable
		}
		out = append(out, Report{Cabinet: k.Cabinet, Drawer: k.Drawer, Position: pos})
	}
	return out
}

// EventCountsSnapshot returns a copy of the event counters.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.IsBaselined() {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
