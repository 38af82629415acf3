package ppg

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// thresholdQuantile is the percentile of |signal| used as the adaptive
// peak-acceptance threshold. Empirically chosen: tolerant of varying
// signal amplitude across devices and finger pressure. Tunable constant,
// not a physical one.
const thresholdQuantile = 0.6

// FindPeaks returns indices of strict local maxima that exceed the
// adaptive threshold and sit at least minDistance samples after the
// previously accepted peak. Peaks are accepted greedily in scan order.
// The distance constraint stops a pulse's dicrotic notch from counting
// as a second beat. Signals of length <= 2 have no interior samples and
// yield no peaks.
func FindPeaks(signal []float64, minDistance int) []int {
	if len(signal) <= 2 {
		return nil
	}
	if minDistance < 1 {
		minDistance = 1
	}

	abs := make([]float64, len(signal))
	for i, v := range signal {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	threshold := stat.Quantile(thresholdQuantile, stat.Empirical, abs, nil)

	var peaks []int
	last := -minDistance - 1
	for i := 1; i < len(signal)-1; i++ {
		if signal[i] <= signal[i-1] || signal[i] <= signal[i+1] {
			continue
		}
		if signal[i] <= threshold {
			continue
		}
		if i-last < minDistance {
			continue
		}
		peaks = append(peaks, i)
		last = i
	}
	return peaks
}
