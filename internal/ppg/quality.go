package ppg

import "gonum.org/v1/gonum/stat"

// QualityWindow is the number of recent raw samples scored per tick.
const QualityWindow = 30

// Quality thresholds. Empirically chosen against 8-bit camera frames;
// tunable constants, not physical ones.
const (
	poorMeanBelow      = 100 // finger not covering the lens
	poorAmplitudeBelow = 2
	fairMeanBelow      = 150 // weak contact
	fairAmplitudeBelow = 5
	fairStdDevBelow    = 1
	goodStdDevBelow    = 3
)

// EvaluateQuality classifies the most recent raw (unfiltered) samples.
// Fewer than QualityWindow samples always scores POOR — there is not
// enough signal to judge yet. Rules are evaluated in order; first match
// wins.
func EvaluateQuality(recent []float64) Quality {
	if len(recent) < QualityWindow {
		return QualityPoor
	}
	recent = recent[len(recent)-QualityWindow:]

	mean := stat.Mean(recent, nil)
	stdDev := stat.StdDev(recent, nil)

	min, max := recent[0], recent[0]
	for _, v := range recent[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	amplitude := max - min

	switch {
	case mean < poorMeanBelow || amplitude < poorAmplitudeBelow:
		return QualityPoor
	case mean < fairMeanBelow || amplitude < fairAmplitudeBelow || stdDev < fairStdDevBelow:
		return QualityFair
	case stdDev < goodStdDevBelow:
		return QualityGood
	default:
		return QualityExcellent
	}
}
