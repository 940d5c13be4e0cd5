package spectral

import "math"

// Weighting selects a frequency weighting curve.
type Weighting int

const (
	// WeightingNone leaves band amplitudes untouched.
	WeightingNone Weighting = iota

	// WeightingA applies the IEC 61672 A-weighting curve.
	WeightingA
)

// AWeighting returns the linear A-weighting gain at freq Hz, normalized to
// unity at 1 kHz. The gain is zero at DC.
func AWeighting(freq float64) float64 {
	if freq <= 0 {
		return 0
	}
	f2 := freq * freq
	p1 := aWeightPole1 * aWeightPole1
	p2 := aWeightPole2 * aWeightPole2
	p3 := aWeightPole3 * aWeightPole3
	p4 := aWeightPole4 * aWeightPole4

	ra := p4 * f2 * f2 / ((f2 + p1) * math.Sqrt((f2+p2)*(f2+p3)) * (f2 + p4))
	return ra * math.Pow(10, aWeightOffsetDB/20)
}

// Weights returns the per-band amplitude multipliers for a weighting curve.
func Weights(kind Weighting, freqs []float64) []float64 {
	w := make([]float64, len(freqs))
	for i, f := range freqs {
		switch kind {
		case WeightingA:
			w[i] = AWeighting(f)
		default:
			w[i] = 1
		}
	}
	return w
}
