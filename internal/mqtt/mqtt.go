// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// TopicPrefix is the root of all drawer sensor topics.
const TopicPrefix = "home/drawers"

// Topic returns the MQTT topic for drawer events of a unit.
func Topic(unit int) string {
	return fmt.Sprintf("%s/%d/events", TopicPrefix, unit)
}

// TopicSystem returns the MQTT topic for system lifecycle events of a unit.
func TopicSystem(unit int) string {
	return fmt.Sprintf("%s/%d/system", TopicPrefix, unit)
}

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a drawer event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Drawer DrawerPayload `json:"drawer"`
}

// DrawerPayload contains the drawer event details. Percent and From are null
// when the position is unknown.
type DrawerPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Key       string `json:"key"`
	Cabinet   int    `json:"cabinet"`
	Drawer    string `json:"drawer"`
	Percent   *uint8 `json:"percent"`
	From      *uint8 `json:"from"`
}

func percentPtr(p logic.Position) *uint8 {
	if !p.Known {
		return nil
	}
	v := p.Percent
	return &v
}

// FormatPayload creates the JSON payload for a drawer event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Drawer: DrawerPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Key:       event.Key.String(),
			Cabinet:   event.Key.Cabinet,
			Drawer:    event.Key.Drawer.String(),
			Percent:   percentPtr(event.To),
			From:      percentPtr(event.From),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last will the broker publishes if the unit drops off.
func WillPayload(now time.Time) []byte {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: now,
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	return payload
}
