// Package mqtt publishes pulse readings and session lifecycle events with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/pulse-meter/internal/ppg"
)

// TopicReadings is the MQTT topic for per-reading pulse events.
const TopicReadings = "health/pulse/readings"

// TopicSystem is the MQTT topic for session and daemon lifecycle events.
const TopicSystem = "health/pulse/system"

// Reading is one surfaced heart-rate estimate with its signal quality.
type Reading struct {
	Timestamp time.Time
	BPM       int
	Quality   ppg.Quality
}

// Publisher publishes pulse events to MQTT.
type Publisher interface {
	// PublishReading sends a heart-rate reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(r Reading) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event: daemon startup/shutdown or a
// measurement starting, finishing, or failing.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "MEASUREMENT_FINISHED"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	AverageBPM int    // final averaged result, 0 when not applicable
	RawPayload []byte // pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // whether the broker should retain the message
}

// Lifecycle event names.
const (
	EventStartup             = "STARTUP"
	EventShutdown            = "SHUTDOWN"
	EventMeasurementStarted  = "MEASUREMENT_STARTED"
	EventMeasurementFinished = "MEASUREMENT_FINISHED"
	EventMeasurementFailed   = "MEASUREMENT_FAILED"
)

// Payload is the MQTT message envelope for a reading.
type Payload struct {
	Pulse PulsePayload `json:"pulse"`
}

// PulsePayload contains the reading details.
type PulsePayload struct {
	Timestamp string `json:"timestamp"`
	BPM       int    `json:"bpm"`
	Quality   string `json:"quality"`
}

// FormatReading creates the JSON payload for a pulse reading.
func FormatReading(r Reading) ([]byte, error) {
	payload := Payload{
		Pulse: PulsePayload{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
			BPM:       r.BPM,
			Quality:   string(r.Quality),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message envelope for lifecycle events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp  string `json:"timestamp"`
	Event      string `json:"event"`
	Reason     string `json:"reason,omitempty"`
	AverageBPM int    `json:"average_bpm,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Event:      event.Event,
			Reason:     event.Reason,
			AverageBPM: event.AverageBPM,
		},
	}
	return json.Marshal(payload)
}
