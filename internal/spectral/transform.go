package spectral

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is returned when a transform cannot be built for the
// requested sample rate, size or band layout.
var ErrInvalidGeometry = errors.New("invalid transform geometry")

// Transformer projects a one-sided FFT spectrum onto analysis bands.
// Implementations are immutable once constructed and safe for concurrent use.
type Transformer interface {
	// NumBands returns the number of analysis bands.
	NumBands() int

	// Frequencies returns the band centre frequencies in Hz, ascending.
	// The returned slice must not be modified.
	Frequencies() []float64

	// Project writes one complex value per band into dst. The modulus of
	// each value is the linear peak amplitude of the band content.
	// len(dst) must be NumBands() and len(spectrum) the FFT bin count.
	Project(dst, spectrum []complex128)

	// Support returns the first FFT bin and per-bin weights describing
	// which part of the spectrum band k draws from.
	Support(k int) (lo int, weights []float64)
}

// BinCount returns the number of unique bins of a real FFT of size n.
func BinCount(n int) int {
	return n/fftHermitianDivisor + 1
}

// FFTTransform exposes every FFT bin as its own band.
type FFTTransform struct {
	freqs   []float64
	scale   float64
	edge    float64 // scale of the DC and Nyquist bins
	support [][]float64
	lo      []int
}

// NewFFTTransform creates a linear-frequency band layout for an FFT of
// size fftSize. windowGain is the coherent gain of the analysis window.
func NewFFTTransform(sampleRate float64, fftSize int, windowGain float64) (*FFTTransform, error) {
	if sampleRate <= 0 || fftSize < fftHermitianDivisor || windowGain <= 0 {
		return nil, fmt.Errorf("%w: rate=%g size=%d gain=%g", ErrInvalidGeometry, sampleRate, fftSize, windowGain)
	}

	bins := BinCount(fftSize)
	t := &FFTTransform{
		freqs:   make([]float64, bins),
		scale:   coherentGainFactor / windowGain,
		edge:    1 / windowGain,
		support: make([][]float64, bins),
		lo:      make([]int, bins),
	}

	binWidth := sampleRate / float64(fftSize)
	for k := range bins {
		t.freqs[k] = float64(k) * binWidth

		lo := max(k-fftSupportHalfSpan, 0)
		hi := min(k+fftSupportHalfSpan, bins-1)
		weights := make([]float64, hi-lo+1)
		for b := lo; b <= hi; b++ {
			d := float64(b - k)
			if d < 0 {
				d = -d
			}
			// triangular taper, 1 at the centre bin
			weights[b-lo] = 1 - d/float64(fftSupportHalfSpan+1)
		}
		t.lo[k] = lo
		t.support[k] = weights
	}

	return t, nil
}

// NumBands implements Transformer.
func (t *FFTTransform) NumBands() int { return len(t.freqs) }

// Frequencies implements Transformer.
func (t *FFTTransform) Frequencies() []float64 { return t.freqs }

// Project implements Transformer.
func (t *FFTTransform) Project(dst, spectrum []complex128) {
	if len(dst) == 0 {
		return
	}
	s := complex(t.scale, 0)
	for k := range dst {
		dst[k] = spectrum[k] * s
	}

	// DC and Nyquist have no mirrored negative-frequency half
	e := complex(t.edge, 0)
	dst[0] = spectrum[0] * e
	if last := len(t.freqs) - 1; last < len(dst) {
		dst[last] = spectrum[last] * e
	}
}

// Support implements Transformer.
func (t *FFTTransform) Support(k int) (int, []float64) {
	return t.lo[k], t.support[k]
}
