// Package mqtt publishes light transitions and lifecycle events, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rclights/internal/lights"
)

// Topic is the MQTT topic for light transitions.
const Topic = "vehicle/lights/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "vehicle/lights/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
)

// ReasonDisconnect is the shutdown reason carried by the broker-held will.
const ReasonDisconnect = "MQTT_DISCONNECT"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a light transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event lights.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name, shutdown only
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload represents the MQTT message payload for a light transition.
type Payload struct {
	Light LightPayload `json:"light"`
}

// LightPayload contains the transition details.
type LightPayload struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	From      string `json:"from"`
	To        string `json:"to"`
	Level     uint16 `json:"level"`
}

// FormatPayload creates the JSON payload for a light transition.
func FormatPayload(event lights.Event) ([]byte, error) {
	payload := Payload{
		Light: LightPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Channel:   string(event.Channel),
			From:      string(event.From),
			To:        string(event.To),
			Level:     event.Level,
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
