package ppg

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// minSpectralLen is the shortest window with useful frequency resolution
// for a 0.7-3.5 Hz band at typical camera rates.
const minSpectralLen = 64

// spectralAgreementBPM is the maximum disagreement between the
// peak-interval and spectral estimates for them to be averaged.
const spectralAgreementBPM = 10

// DominantBPM estimates the heart rate from the dominant frequency of the
// filtered signal: the highest-magnitude FFT coefficient inside the
// passband, converted to BPM. Returns (0, false) for windows shorter than
// minSpectralLen or when no in-band component exists.
func DominantBPM(filtered []float64, sampleRateHz float64) (int, bool) {
	if len(filtered) < minSpectralLen || sampleRateHz <= 0 {
		return 0, false
	}

	fft := fourier.NewFFT(len(filtered))
	coeffs := fft.Coefficients(nil, filtered)

	best := -1
	var bestMag float64
	for i := 1; i < len(coeffs); i++ {
		freq := fft.Freq(i) * sampleRateHz
		if freq < DefaultLowCutHz || freq > DefaultHighCutHz {
			continue
		}
		mag := cmplx.Abs(coeffs[i])
		if mag > bestMag {
			bestMag = mag
			best = i
		}
	}
	if best < 0 || bestMag == 0 {
		return 0, false
	}

	bpm := int(math.Round(fft.Freq(best) * sampleRateHz * 60))
	if bpm < MinBPM || bpm > MaxBPM {
		return 0, false
	}
	return bpm, true
}

// CombineBPM merges the peak-interval estimate with the spectral estimate.
// When both are available and agree within spectralAgreementBPM they are
// averaged; a disagreement falls back to the peak-interval estimate, which
// tracks beat-to-beat timing more directly.
func CombineBPM(peakBPM int, peakOK bool, spectralBPM int, spectralOK bool) (int, bool) {
	if !peakOK {
		return 0, false
	}
	if !spectralOK {
		return peakBPM, true
	}
	diff := peakBPM - spectralBPM
	if diff < 0 {
		diff = -diff
	}
	if diff <= spectralAgreementBPM {
		return int(math.Round(float64(peakBPM+spectralBPM) / 2)), true
	}
	return peakBPM, true
}
