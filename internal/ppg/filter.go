package ppg

import "math"

// minFilterLen is the shortest input worth filtering. Shorter inputs are
// passed through unchanged.
const minFilterLen = 10

// BandpassFilter isolates the physiological heart-rate band from baseline
// drift (ambient light, finger pressure) below LowCutHz and sensor noise
// above HighCutHz, using two cheap single-pole IIR stages. The filter is
// stateless: it recomputes over the whole window on every call.
type BandpassFilter struct {
	LowCutHz  float64
	HighCutHz float64
}

// NewBandpassFilter returns a filter with the default 0.7-3.5 Hz band.
func NewBandpassFilter() BandpassFilter {
	return BandpassFilter{LowCutHz: DefaultLowCutHz, HighCutHz: DefaultHighCutHz}
}

// Apply removes the DC component, low-passes at HighCutHz, then
// high-passes at LowCutHz. The output has the same length as the input.
// Inputs of length <= 10 are returned unchanged (copied): too short to
// filter meaningfully.
func (f BandpassFilter) Apply(signal []float64, sampleRateHz float64) []float64 {
	out := make([]float64, len(signal))
	copy(out, signal)
	if len(signal) <= minFilterLen || sampleRateHz <= 0 {
		return out
	}

	// DC removal.
	var mean float64
	for _, v := range signal {
		mean += v
	}
	mean /= float64(len(signal))
	for i := range out {
		out[i] -= mean
	}

	dt := 1 / sampleRateHz

	// Low-pass: y[i] = y[i-1] + alpha*(x[i] - y[i-1]).
	rc := 1 / (2 * math.Pi * f.HighCutHz)
	alpha := dt / (rc + dt)
	lp := make([]float64, len(out))
	lp[0] = out[0]
	for i := 1; i < len(out); i++ {
		lp[i] = lp[i-1] + alpha*(out[i]-lp[i-1])
	}

	// High-pass on the low-passed result: y[i] = alpha*(y[i-1] + x[i] - x[i-1]).
	rc = 1 / (2 * math.Pi * f.LowCutHz)
	alpha = rc / (rc + dt)
	out[0] = lp[0]
	for i := 1; i < len(lp); i++ {
		out[i] = alpha * (out[i-1] + lp[i] - lp[i-1])
	}

	return out
}
