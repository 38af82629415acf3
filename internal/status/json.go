package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	State         string     `json:"state"`
	Progress      float64    `json:"progress"`
	BPM           int        `json:"bpm"`
	AverageBPM    int        `json:"average_bpm"`
	Quality       string     `json:"quality"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"measurement_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of measurement counts.
type CountsJSON struct {
	Started  int `json:"started"`
	Finished int `json:"finished"`
	Failed   int `json:"failed"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleRateHz float64 `json:"sample_rate_hz"`
	DurationMs   int64   `json:"duration_ms"`
	Device       string  `json:"device"`
	TorchChip    string  `json:"torch_chip"`
	TorchLine    int     `json:"torch_line"`
	Broker       string  `json:"broker"`
	HTTPPort     string  `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		State:         string(snap.State),
		Progress:      snap.Progress,
		BPM:           snap.BPM,
		AverageBPM:    snap.AverageBPM,
		Quality:       string(snap.Quality),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Started:  snap.Counts.Started,
			Finished: snap.Counts.Finished,
			Failed:   snap.Counts.Failed,
		},
		Config: ConfigJSON{
			SampleRateHz: snap.Config.SampleRateHz,
			DurationMs:   snap.Config.DurationMs,
			Device:       snap.Config.Device,
			TorchChip:    snap.Config.TorchChip,
			TorchLine:    snap.Config.TorchLine,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
