package ppg

import (
	"math"
	"sort"
)

// minPeaksForEstimate is the fewest peaks that give a usable set of
// inter-peak intervals.
const minPeaksForEstimate = 3

// EstimateBPM converts peak indices into a heart rate. It needs at least
// three peaks; intervals whose implied BPM falls outside [MinBPM, MaxBPM]
// are discarded as physiologically implausible. The median of the
// remaining intervals is used — robust against a single spurious short or
// long interval from a missed or double-counted peak. Returns (0, false)
// when no estimate is available yet; that is not an error.
func EstimateBPM(peaks []int, sampleRateHz float64) (int, bool) {
	if len(peaks) < minPeaksForEstimate || sampleRateHz <= 0 {
		return 0, false
	}

	minInterval := 60.0 / MaxBPM
	maxInterval := 60.0 / MinBPM

	var intervals []float64
	for i := 1; i < len(peaks); i++ {
		iv := float64(peaks[i]-peaks[i-1]) / sampleRateHz
		if iv < minInterval || iv > maxInterval {
			continue
		}
		intervals = append(intervals, iv)
	}
	if len(intervals) == 0 {
		return 0, false
	}

	sort.Float64s(intervals)
	median := intervals[len(intervals)/2]
	if len(intervals)%2 == 0 {
		median = (intervals[len(intervals)/2-1] + intervals[len(intervals)/2]) / 2
	}

	return int(math.Round(60 / median)), true
}
