// Package status provides a thread-safe status tracker for the drawer-sensor daemon.
// It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Unit        int
	Cabinets    []string // cabinet id and mask letters, e.g. "2umo"
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Deadband    uint8
	ShortEcho   string
	Broker      string
	HTTPAddr    string
	HubPort     string // empty = disabled
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and owns its slices.
type Snapshot struct {
	// Latest holds the raw reports of the last cycle.
	Latest []logic.Report
	// Stable holds the debounced position of every drawer seen so far.
	Stable    []logic.Report
	Baselined bool
	Counts    logic.EventCounts

	Cycles        int
	UnknownCount  int // drawer readings resolved to unknown since startup
	LastCycle     time.Time
	LastCycleTime time.Duration

	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBuffered  int
	HubConnected  bool
	Network       *NetworkInfo
	Warnings      []string
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	cfg.Cabinets = append([]string(nil), cfg.Cabinets...)
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// RecordCycle stores the raw reports of a finished cycle.
func (t *Tracker) RecordCycle(reports []logic.Report, at time.Time, took time.Duration) {
	unknown := 0
	for _, r := range reports {
		if !r.Position.Known {
			unknown++
		}
	}

	t.mu.Lock()
	t.snap.Latest = append(t.snap.Latest[:0:0], reports...)
	t.snap.Cycles++
	t.snap.UnknownCount += unknown
	t.snap.LastCycle = at
	t.snap.LastCycleTime = took
	t.mu.Unlock()
}

// Update sets the debounced drawer state, baseline status, and event counts.
// Called from runLoop after every cycle.
func (t *Tracker) Update(stable []logic.Report, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Stable = append(t.snap.Stable[:0:0], stable...)
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status and the number of
// messages waiting for the broker.
func (t *Tracker) SetMQTTConnected(connected bool, buffered int) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTBuffered = buffered
	t.mu.Unlock()
}

// SetHubConnected sets the hub serial link status.
func (t *Tracker) SetHubConnected(connected bool) {
	t.mu.Lock()
	t.snap.HubConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetWarnings replaces the configuration warnings.
func (t *Tracker) SetWarnings(warnings []string) {
	t.mu.Lock()
	t.snap.Warnings = append([]string(nil), warnings...)
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Latest = append([]logic.Report(nil), t.snap.Latest...)
	s.Stable = append([]logic.Report(nil), t.snap.Stable...)
	s.Warnings = append([]string(nil), t.snap.Warnings...)
	s.Config.Cabinets = append([]string(nil), t.snap.Config.Cabinets...)
	if t.snap.Network != nil {
		n := *t.snap.Network
		s.Network = &n
	}
	now := t.now
	t.mu.RUnlock()
	s.Now = now()
	return s
}
