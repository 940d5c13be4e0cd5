package pan

import (
	"math"
	"math/cmplx"
)

// Supporter describes which FFT bins feed each analysis band.
type Supporter interface {
	Support(k int) (lo int, weights []float64)
}

// Tables holds the read-only per-band data the estimators need. Tables are
// built once per configuration and shared by every worker.
type Tables struct {
	freqs     []float64
	itdWeight []float64
	coherence []float64
	maxLag    []float64
	lagSteps  []int

	lo      []int
	weights [][]float64

	// phasors at the most negative lag and per-lag rotation, per support bin
	start [][]complex128
	step  [][]complex128

	maxSupport int
	maxLags    int
}

// NewTables precomputes blend weights, ITD bounds, coherence floors and the
// lag phasors for every band.
func NewTables(freqs []float64, sampleRate float64, fftSize int, sup Supporter) *Tables {
	n := len(freqs)
	t := &Tables{
		freqs:     freqs,
		itdWeight: make([]float64, n),
		coherence: make([]float64, n),
		maxLag:    make([]float64, n),
		lagSteps:  make([]int, n),
		lo:        make([]int, n),
		weights:   make([][]float64, n),
		start:     make([][]complex128, n),
		step:      make([][]complex128, n),
	}

	for k, f := range freqs {
		t.itdWeight[k] = ITDWeight(f)
		t.coherence[k] = CoherenceFloor(f)
		t.maxLag[k] = MaxITD(f) * sampleRate
		steps := max(int(math.Ceil(t.maxLag[k])), minLagSamples)
		t.lagSteps[k] = steps

		lo, w := sup.Support(k)
		t.lo[k] = lo
		t.weights[k] = w
		t.start[k] = make([]complex128, len(w))
		t.step[k] = make([]complex128, len(w))
		for i := range w {
			theta := 2 * math.Pi * float64(lo+i) / float64(fftSize)
			t.start[k][i] = cmplx.Rect(1, theta*float64(steps))
			t.step[k][i] = cmplx.Rect(1, -theta)
		}

		t.maxSupport = max(t.maxSupport, len(w))
		t.maxLags = max(t.maxLags, 2*steps+1)
	}

	return t
}

// NumBands returns the number of bands described by the tables.
func (t *Tables) NumBands() int { return len(t.freqs) }

// ITDWeightAt returns the blend weight of the time-difference cue for band k.
func (t *Tables) ITDWeightAt(k int) float64 { return t.itdWeight[k] }

// MaxLagAt returns the largest plausible lag for band k, in samples.
func (t *Tables) MaxLagAt(k int) float64 { return t.maxLag[k] }

// ITDWeight is the duplex-theory weight of the time cue at freq Hz. It falls
// monotonically from 1 at DC to 0 at high frequency and equals 0.5 at the
// crossover frequency. The level cue receives 1 - ITDWeight.
func ITDWeight(freq float64) float64 {
	if freq <= 0 {
		return 1
	}
	return 1 / (1 + math.Pow(freq/crossoverFreq, crossoverSlope))
}

// MaxITD returns the largest plausible interaural time difference at freq
// Hz, in seconds, interpolated in log frequency between the low and high
// frequency bounds.
func MaxITD(freq float64) float64 {
	return logInterp(freq, itdLowFreq, itdHighFreq, itdLowBound, itdHighBound)
}

// CoherenceFloor returns the minimum normalized cross-correlation a band at
// freq Hz needs before its time-difference estimate is trusted.
func CoherenceFloor(freq float64) float64 {
	return logInterp(freq, coherenceLowFreq, coherenceHighFreq, coherenceLowFloor, coherenceHighFloor)
}

// logInterp maps freq onto [lowVal, highVal] linearly in log2(freq) between
// lowFreq and highFreq, holding the end values outside that range.
func logInterp(freq, lowFreq, highFreq, lowVal, highVal float64) float64 {
	if freq <= lowFreq {
		return lowVal
	}
	if freq >= highFreq {
		return highVal
	}
	x := math.Log2(freq/lowFreq) / math.Log2(highFreq/lowFreq)
	return lowVal + x*(highVal-lowVal)
}
