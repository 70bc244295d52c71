package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

var testTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestTopics(t *testing.T) {
	if got := Topic(2); got != "home/drawers/2/events" {
		t.Errorf("unexpected topic: %s", got)
	}
	if got := TopicSystem(3); got != "home/drawers/3/system" {
		t.Errorf("unexpected system topic: %s", got)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp: testTime,
		Type:      logic.EventOpened,
		Key:       logic.Key{Cabinet: 2, Drawer: logic.Middle},
		From:      logic.Percent(0),
		To:        logic.Percent(45),
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"drawer":{"timestamp":"2026-03-01T10:00:00Z","event":"OPENED","key":"2m","cabinet":2,"drawer":"m","percent":45,"from":0}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadUnknownIsNull(t *testing.T) {
	event := logic.Event{
		Timestamp: testTime,
		Type:      logic.EventLost,
		Key:       logic.Key{Cabinet: 7, Drawer: logic.Top},
		From:      logic.Percent(12),
		To:        logic.Unknown,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	drawer := parsed["drawer"]
	if v, ok := drawer["percent"]; !ok || v != nil {
		t.Errorf("expected percent null, got %v (present=%v)", v, ok)
	}
	if drawer["from"] != float64(12) {
		t.Errorf("expected from 12, got %v", drawer["from"])
	}
	if drawer["event"] != "LOST" {
		t.Errorf("unexpected event: %v", drawer["event"])
	}
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	for _, typ := range []logic.EventType{logic.EventOpened, logic.EventClosed, logic.EventMoved, logic.EventLost} {
		t.Run(string(typ), func(t *testing.T) {
			payload, err := FormatPayload(logic.Event{Timestamp: testTime, Type: typ})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Drawer.Event != string(typ) {
				t.Errorf("event: got %s, want %s", parsed.Drawer.Event, typ)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	payload, err := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 3, 1, 11, 0, 0, 0, loc),
		Type:      logic.EventClosed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Drawer.Timestamp != "2026-03-01T10:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Drawer.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: testTime,
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-03-01T10:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: EventReconnected})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"system":{"timestamp":"2026-03-01T10:00:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRawPassThrough(t *testing.T) {
	raw := []byte(`{"status":"snapshot"}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: EventStartup, RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestWillPayload(t *testing.T) {
	expected := `{"system":{"timestamp":"2026-03-01T10:00:00Z","event":"OFFLINE","reason":"MQTT_DISCONNECT"}}`
	if got := string(WillPayload(testTime)); got != expected {
		t.Errorf("unexpected will:\ngot:  %s\nwant: %s", got, expected)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	event := logic.Event{Timestamp: testTime, Type: logic.EventOpened, Key: logic.Key{Cabinet: 2}}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Fatalf("expected 1 event and payload, got %d/%d", len(f.Events), len(f.Payloads))
	}

	f.PublishSystem(SystemEvent{Event: EventStartup, Retained: true})
	f.PublishSystem(SystemEvent{Event: EventHeartbeat})
	if got := f.SystemEventNames(); len(got) != 2 || got[0] != EventStartup || got[1] != EventHeartbeat {
		t.Errorf("unexpected system events: %v", got)
	}
	if !f.SystemEvents[0].Retained || f.SystemEvents[1].Retained {
		t.Error("retained flag not recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(logic.Event{})
	f.PublishSystem(SystemEvent{})
	f.Close()

	f.Reset()

	if len(f.Events) != 0 || len(f.SystemEvents) != 0 || f.Closed || f.Connected {
		t.Errorf("reset left state behind: %+v", f)
	}
	if err := f.Publish(logic.Event{}); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}
