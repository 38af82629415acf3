// Package ppg contains pure signal-processing logic for camera-based
// photoplethysmography: frame sampling, buffering, bandpass filtering,
// peak detection, heart-rate estimation, and signal-quality scoring.
// This package has NO hardware, OS, or clock dependencies — timestamps
// are always injected as seconds from measurement start.
package ppg

// Sample is one scalar brightness reading taken from a camera frame.
type Sample struct {
	// Value is the averaged channel intensity (0-255 for 8-bit frames).
	Value float64
	// Timestamp is seconds since the start of the measurement.
	Timestamp float64
}

// BPMReading is a single heart-rate estimate. Readings are only produced
// inside the physiologically plausible range [MinBPM, MaxBPM].
type BPMReading struct {
	BPM       int
	Timestamp float64
}

// Quality classifies how trustworthy the current raw signal is.
type Quality string

const (
	QualityPoor      Quality = "POOR"
	QualityFair      Quality = "FAIR"
	QualityGood      Quality = "GOOD"
	QualityExcellent Quality = "EXCELLENT"
)

// Physiological bounds for a surfaced heart rate.
const (
	MinBPM = 40
	MaxBPM = 200
)

// Default bandpass cutoffs bracketing 42-210 BPM.
const (
	DefaultLowCutHz  = 0.7
	DefaultHighCutHz = 3.5
)
