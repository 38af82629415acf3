// Package status provides a thread-safe status tracker for the
// pulse-meter daemon. It is read by the HTTP handlers and feeds the MQTT
// lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pulse-meter/internal/ppg"
)

// State is the measurement lifecycle state shown to consumers.
type State string

const (
	StateIdle      State = "IDLE"
	StateMeasuring State = "MEASURING"
	StateFinished  State = "FINISHED"
	StateFailed    State = "FAILED"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleRateHz float64
	DurationMs   int64
	Device       string
	TorchChip    string
	TorchLine    int
	Broker       string
	HTTPPort     string
}

// MeasurementCounts tracks measurement outcomes since startup.
type MeasurementCounts struct {
	Started  int
	Finished int
	Failed   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	State         State
	Progress      float64
	BPM           int // most recent per-tick reading, 0 before the first
	AverageBPM    int // final result of the last finished measurement
	Quality       ppg.Quality
	Counts        MeasurementCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
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
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     StateIdle,
			Quality:   ppg.QualityPoor,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// MeasurementStarted resets per-measurement fields and counts the start.
func (t *Tracker) MeasurementStarted() {
	t.mu.Lock()
	t.snap.State = StateMeasuring
	t.snap.Progress = 0
	t.snap.BPM = 0
	t.snap.AverageBPM = 0
	t.snap.Quality = ppg.QualityPoor
	t.snap.Counts.Started++
	t.mu.Unlock()
}

// SetBPM records the most recent per-tick reading.
func (t *Tracker) SetBPM(bpm int) {
	t.mu.Lock()
	t.snap.BPM = bpm
	t.mu.Unlock()
}

// SetQuality records the most recent signal quality.
func (t *Tracker) SetQuality(q ppg.Quality) {
	t.mu.Lock()
	t.snap.Quality = q
	t.mu.Unlock()
}

// SetProgress records measurement progress in [0, 1].
func (t *Tracker) SetProgress(p float64) {
	t.mu.Lock()
	t.snap.Progress = p
	t.mu.Unlock()
}

// MeasurementFinished records the final averaged result.
func (t *Tracker) MeasurementFinished(averageBPM int) {
	t.mu.Lock()
	t.snap.State = StateFinished
	t.snap.Progress = 1
	t.snap.AverageBPM = averageBPM
	t.snap.Counts.Finished++
	t.mu.Unlock()
}

// MeasurementFailed records a measurement that produced no result.
func (t *Tracker) MeasurementFailed() {
	t.mu.Lock()
	t.snap.State = StateFailed
	t.snap.Counts.Failed++
	t.mu.Unlock()
}

// SetIdle returns the tracker to the idle state between measurements.
func (t *Tracker) SetIdle() {
	t.mu.Lock()
	t.snap.State = StateIdle
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
