package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// cqtKernel is the sparse frequency-domain kernel of one constant-Q band.
type cqtKernel struct {
	lo      int
	coeffs  []complex128
	weights []float64
}

// CQTTransform projects an FFT spectrum onto log-spaced constant-Q bands.
//
// Each band kernel is a Hann-tapered complex exponential centred in the
// analysis block, transformed once to the frequency domain, conjugated and
// trimmed to the contiguous bins that carry significant energy. Kernel
// length is Q·fs/f (capped at the block size), so bandwidth narrows at low
// frequency and widens at high frequency.
type CQTTransform struct {
	freqs   []float64
	q       float64
	kernels []cqtKernel
}

// NewCQTTransform builds bins constant-Q kernels between minFreq and the
// Nyquist frequency for an FFT of size fftSize. win is the analysis window
// applied to the block before the FFT; kernels are normalized against it so
// a full-scale sinusoid at a band centre projects to modulus ≈ 1.
func NewCQTTransform(sampleRate float64, fftSize, bins int, minFreq float64, win []float64) (*CQTTransform, error) {
	nyquist := sampleRate / fftHermitianDivisor
	switch {
	case sampleRate <= 0 || fftSize < minKernelLength:
		return nil, fmt.Errorf("%w: rate=%g size=%d", ErrInvalidGeometry, sampleRate, fftSize)
	case bins < minBinsPerBand:
		return nil, fmt.Errorf("%w: %d constant-Q bins", ErrInvalidGeometry, bins)
	case minFreq <= 0 || minFreq >= nyquist:
		return nil, fmt.Errorf("%w: minimum frequency %g Hz outside (0, %g)", ErrInvalidGeometry, minFreq, nyquist)
	case len(win) != fftSize:
		return nil, fmt.Errorf("%w: window length %d != %d", ErrInvalidGeometry, len(win), fftSize)
	}

	ratio := math.Pow(nyquist/minFreq, 1/float64(bins))
	t := &CQTTransform{
		freqs:   make([]float64, bins),
		q:       1 / (ratio - 1),
		kernels: make([]cqtKernel, bins),
	}

	fft := fourier.NewCmplxFFT(fftSize)
	timeKernel := make([]complex128, fftSize)
	spectrum := make([]complex128, fftSize)
	mags := make([]float64, BinCount(fftSize))

	for k := range bins {
		freq := minFreq * math.Pow(ratio, float64(k))
		t.freqs[k] = freq

		length := int(math.Round(t.q * sampleRate / freq))
		length = min(max(length, minKernelLength), fftSize)
		taper := HannWindow(length)
		start := (fftSize - length) / fftHermitianDivisor

		clear(timeKernel)
		var gain float64
		omega := 2 * math.Pi * freq / sampleRate
		for n, h := range taper {
			idx := start + n
			timeKernel[idx] = complex(h, 0) * cmplx.Rect(1, omega*float64(idx))
			gain += h * win[idx]
		}
		if gain <= 0 {
			return nil, fmt.Errorf("%w: band %d (%g Hz) has no window overlap", ErrInvalidGeometry, k, freq)
		}

		spectrum = fft.Coefficients(spectrum, timeKernel)
		scale := coherentGainFactor / (gain * float64(fftSize))
		for b := range mags {
			mags[b] = cmplx.Abs(spectrum[b])
		}
		t.kernels[k] = sparsify(spectrum[:len(mags)], mags, scale)
	}

	return t, nil
}

// sparsify keeps the contiguous bin span whose magnitude exceeds kernelFloor
// of the peak, conjugating and scaling it into a projection kernel.
func sparsify(spectrum []complex128, mags []float64, scale float64) cqtKernel {
	peak := floats.Max(mags)
	floor := peak * kernelFloor

	lo, hi := 0, len(mags)-1
	for lo < hi && mags[lo] < floor {
		lo++
	}
	for hi > lo && mags[hi] < floor {
		hi--
	}

	kernel := cqtKernel{
		lo:      lo,
		coeffs:  make([]complex128, hi-lo+1),
		weights: make([]float64, hi-lo+1),
	}
	for b := lo; b <= hi; b++ {
		kernel.coeffs[b-lo] = cmplx.Conj(spectrum[b]) * complex(scale, 0)
		if peak > 0 {
			kernel.weights[b-lo] = mags[b] / peak
		}
	}
	return kernel
}

// NumBands implements Transformer.
func (t *CQTTransform) NumBands() int { return len(t.freqs) }

// Frequencies implements Transformer.
func (t *CQTTransform) Frequencies() []float64 { return t.freqs }

// Q returns the constant quality factor shared by every band.
func (t *CQTTransform) Q() float64 { return t.q }

// Project implements Transformer.
func (t *CQTTransform) Project(dst, spectrum []complex128) {
	for k := range dst {
		kern := &t.kernels[k]
		var acc complex128
		bins := spectrum[kern.lo : kern.lo+len(kern.coeffs)]
		for i, c := range kern.coeffs {
			acc += bins[i] * c
		}
		dst[k] = acc
	}
}

// Support implements Transformer.
func (t *CQTTransform) Support(k int) (int, []float64) {
	return t.kernels[k].lo, t.kernels[k].weights
}

// KernelSpan returns the number of FFT bins band k draws from.
func (t *CQTTransform) KernelSpan(k int) int {
	return len(t.kernels[k].coeffs)
}
