package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Unit          int          `json:"unit"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Drawers       []DrawerJSON `json:"drawers"`
	Cycles        CyclesJSON   `json:"cycles"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Hub           HubStatus    `json:"hub"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DrawerJSON is one drawer: the debounced position and the last raw reading.
// Unknown positions are null.
type DrawerJSON struct {
	Key     string `json:"key"`
	Cabinet int    `json:"cabinet"`
	Drawer  string `json:"drawer"`
	Percent *uint8 `json:"percent"`
	Raw     *uint8 `json:"raw"`
}

// CyclesJSON reports measurement cycle statistics.
type CyclesJSON struct {
	Count        int    `json:"count"`
	UnknownCount int    `json:"unknown_readings"`
	Last         string `json:"last,omitempty"`
	LastCycleMs  int64  `json:"last_cycle_ms"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Buffered  int    `json:"buffered"`
}

// HubStatus reports the hub serial link state.
type HubStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Port      string `json:"port,omitempty"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened int `json:"opened"`
	Closed int `json:"closed"`
	Moved  int `json:"moved"`
	Lost   int `json:"lost"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Cabinets    []string `json:"cabinets"`
	PollMs      int64    `json:"poll_ms"`
	DebounceMs  int64    `json:"debounce_ms"`
	HeartbeatMs int64    `json:"heartbeat_ms"`
	Deadband    uint8    `json:"deadband"`
	ShortEcho   string   `json:"short_echo"`
	Broker      string   `json:"broker"`
	HTTPAddr    string   `json:"http_addr"`
}

func percentPtr(p logic.Position) *uint8 {
	if !p.Known {
		return nil
	}
	v := p.Percent
	return &v
}

// buildDrawers lists drawers in stable order, falling back to the raw cycle
// before the detector has seen anything.
func buildDrawers(snap Snapshot) []DrawerJSON {
	raw := logic.Index(snap.Latest)
	order := snap.Stable
	if len(order) == 0 {
		order = snap.Latest
	}
	stable := logic.Index(snap.Stable)

	drawers := make([]DrawerJSON, 0, len(order))
	for _, r := range order {
		key := r.Key()
		drawers = append(drawers, DrawerJSON{
			Key:     key.String(),
			Cabinet: key.Cabinet,
			Drawer:  key.Drawer.String(),
			Percent: percentPtr(stable[key]),
			Raw:     percentPtr(raw[key]),
		})
	}
	return drawers
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Unit:          snap.Config.Unit,
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Drawers:       buildDrawers(snap),
		Cycles: CyclesJSON{
			Count:        snap.Cycles,
			UnknownCount: snap.UnknownCount,
			LastCycleMs:  snap.LastCycleTime.Milliseconds(),
		},
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Buffered:  snap.MQTTBuffered,
		},
		Hub: HubStatus{
			Enabled:   snap.Config.HubPort != "",
			Connected: snap.HubConnected,
			Port:      snap.Config.HubPort,
		},
		Counts: CountsJSON{
			Opened: snap.Counts.Opened,
			Closed: snap.Counts.Closed,
			Moved:  snap.Counts.Moved,
			Lost:   snap.Counts.Lost,
		},
		Warnings: snap.Warnings,
		Config: ConfigJSON{
			Cabinets:    snap.Config.Cabinets,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Deadband:    snap.Config.Deadband,
			ShortEcho:   snap.Config.ShortEcho,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastCycle.IsZero() {
		inner.Cycles.Last = snap.LastCycle.UTC().Format(time.RFC3339)
	}
	if inner.Config.Cabinets == nil {
		inner.Config.Cabinets = []string{}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
