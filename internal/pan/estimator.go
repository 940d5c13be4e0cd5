// Package pan estimates a per-band stereo position from two-channel spectra
// using interaural level and time differences and their duplex-theory blend.
//
// Pan indices run from -1 (left) to +1 (right): a louder or earlier left
// channel yields a negative index.
package pan

import (
	"math"
	"math/cmplx"
)

// Method selects how pan is estimated.
type Method int

const (
	// Level uses the interaural level difference only.
	Level Method = iota

	// Time uses the interaural time difference only.
	Time

	// Blended weights time and level cues by frequency (duplex theory).
	Blended
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case Level:
		return "level"
	case Time:
		return "time"
	case Blended:
		return "blended"
	default:
		return "unknown"
	}
}

// Input carries one block's two-channel analysis data.
type Input struct {
	// Left and Right are one-sided FFT spectra of the windowed channels.
	Left, Right []complex128

	// LeftMag and RightMag are per-band magnitudes.
	LeftMag, RightMag []float64

	// Amplitude is the thresholded band amplitude; bands at zero are skipped.
	Amplitude []float64
}

// Estimator writes one pan index per band into out.
// An Estimator owns scratch space and is not safe for concurrent use.
type Estimator interface {
	Estimate(in *Input, out []float64)
}

// New returns the estimator for method. The choice is made once so the per
// block path never branches on configuration.
func New(method Method, t *Tables) Estimator {
	switch method {
	case Time:
		return &timeEstimator{corr: newCorrelator(t)}
	case Blended:
		return &blendEstimator{corr: newCorrelator(t), tables: t}
	default:
		return levelEstimator{}
	}
}

// LevelPan returns the level-difference pan for band magnitudes l and r.
func LevelPan(l, r float64) float64 {
	return Clamp((r - l) / (l + r + levelEpsilon))
}

// Clamp limits a pan index to [-1, 1] and maps non-finite values to 0.
func Clamp(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < -1:
		return -1
	case p > 1:
		return 1
	default:
		return p
	}
}

type levelEstimator struct{}

func (levelEstimator) Estimate(in *Input, out []float64) {
	for k := range out {
		if in.Amplitude[k] <= 0 {
			out[k] = 0
			continue
		}
		out[k] = LevelPan(in.LeftMag[k], in.RightMag[k])
	}
}

type timeEstimator struct {
	corr *correlator
}

func (e *timeEstimator) Estimate(in *Input, out []float64) {
	for k := range out {
		if in.Amplitude[k] <= 0 {
			out[k] = 0
			continue
		}
		p, ok := e.corr.pan(k, in.Left, in.Right)
		if !ok {
			p = 0
		}
		out[k] = p
	}
}

type blendEstimator struct {
	corr   *correlator
	tables *Tables
}

func (e *blendEstimator) Estimate(in *Input, out []float64) {
	for k := range out {
		if in.Amplitude[k] <= 0 {
			out[k] = 0
			continue
		}
		ild := LevelPan(in.LeftMag[k], in.RightMag[k])
		itd, ok := e.corr.pan(k, in.Left, in.Right)
		if !ok {
			// unreliable time cue: level only
			out[k] = ild
			continue
		}
		w := e.tables.itdWeight[k]
		out[k] = Clamp(w*itd + (1-w)*ild)
	}
}

// correlator evaluates band-limited cross-correlation over the lag range of
// each band.
type correlator struct {
	t      *Tables
	cross  []complex128
	phasor []complex128
	values []float64
}

func newCorrelator(t *Tables) *correlator {
	return &correlator{
		t:      t,
		cross:  make([]complex128, t.maxSupport),
		phasor: make([]complex128, t.maxSupport),
		values: make([]float64, t.maxLags),
	}
}

// pan returns the time-difference pan of band k and whether it is reliable.
//
// The weighted cross-spectrum C[b] = L[b]·conj(R[b]) is turned into a
// correlation r(τ) = Σ Re(C[b]·e^{-i2πbτ/N}) on the integer lag grid
// ±lagSteps. A right channel lagging by d samples peaks at τ = d, which
// places the source on the left.
func (c *correlator) pan(k int, left, right []complex128) (float64, bool) {
	t := c.t
	lo := t.lo[k]
	weights := t.weights[k]
	n := len(weights)
	if n == 0 || lo+n > len(left) || lo+n > len(right) {
		return 0, false
	}

	var el, er float64
	cross := c.cross[:n]
	phasor := c.phasor[:n]
	for i, w := range weights {
		l := left[lo+i]
		r := right[lo+i]
		el += w * (real(l)*real(l) + imag(l)*imag(l))
		er += w * (real(r)*real(r) + imag(r)*imag(r))
		cross[i] = complex(w, 0) * l * cmplx.Conj(r)
		phasor[i] = t.start[k][i]
	}
	if !(el > energyFloor && er > energyFloor) || math.IsInf(el, 0) || math.IsInf(er, 0) {
		return 0, false
	}

	steps := t.lagSteps[k]
	values := c.values[:2*steps+1]
	step := t.step[k]
	best := 0
	for j := range values {
		var acc float64
		for i, x := range cross {
			acc += real(x * phasor[i])
			phasor[i] *= step[i]
		}
		values[j] = acc
		if acc > values[best] {
			best = j
		}
	}

	coherence := values[best] / math.Sqrt(el*er)
	if math.IsNaN(coherence) || coherence < t.coherence[k] {
		return 0, false
	}

	lag := float64(best - steps)
	if best > 0 && best < len(values)-1 {
		prev, cur, next := values[best-1], values[best], values[best+1]
		denom := prev - 2*cur + next
		if math.Abs(denom) > parabolaDenomFloor {
			lag += 0.5 * (prev - next) / denom
		}
	}

	p := -lag / t.maxLag[k]
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return Clamp(p), true
}
