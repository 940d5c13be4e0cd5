package panorama

import (
	"math"
	"math/cmplx"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-audio-panorama/internal/pan"
	"github.com/tphakala/go-audio-panorama/internal/spectral"
)

// FrequencyBand is one analysis result: the level and stereo position of a
// frequency band of one track.
type FrequencyBand struct {
	// Frequency is the band centre frequency in Hz.
	Frequency float64 `json:"frequency"`

	// Amplitude is the normalized band level in [0, 1].
	Amplitude float64 `json:"amplitude"`

	// Pan is the stereo position from -1 (left) to +1 (right).
	Pan float64 `json:"pan"`

	// Track is the index of the track the band belongs to.
	Track int `json:"track"`
}

// Processor analyzes single blocks against a fixed configuration.
//
// A Processor owns its FFT plan and scratch buffers, so Process does not
// allocate once dst has enough capacity. It is not safe for concurrent use;
// give each goroutine its own Processor.
type Processor struct {
	t   *tables
	fft *fourier.FFT
	est pan.Estimator

	frames  [stereoChannels][]float64
	spectra [stereoChannels][]complex128
	bands   [stereoChannels][]complex128
	mags    [stereoChannels][]float64
	amp     []float64
	pans    []float64
	input   pan.Input
}

// NewProcessor creates a processor for cfg.
func NewProcessor(cfg Config) (*Processor, error) {
	t, err := buildTables(cfg)
	if err != nil {
		return nil, err
	}
	return newProcessor(t), nil
}

func newProcessor(t *tables) *Processor {
	n := t.cfg.WindowSize
	bins := spectral.BinCount(n)
	nb := t.numBands()

	p := &Processor{
		t:    t,
		fft:  fourier.NewFFT(n),
		est:  pan.New(t.cfg.PanMethod.estimator(), t.pan),
		amp:  make([]float64, nb),
		pans: make([]float64, nb),
	}
	for c := range stereoChannels {
		p.frames[c] = make([]float64, n)
		p.spectra[c] = make([]complex128, bins)
		p.bands[c] = make([]complex128, nb)
		p.mags[c] = make([]float64, nb)
	}
	p.input = pan.Input{
		Left:      p.spectra[leftChannel],
		Right:     p.spectra[rightChannel],
		LeftMag:   p.mags[leftChannel],
		RightMag:  p.mags[rightChannel],
		Amplitude: p.amp,
	}
	return p
}

// NumBands returns the number of bands Process produces.
func (p *Processor) NumBands() int { return len(p.amp) }

// Config returns the configuration the processor was built for.
func (p *Processor) Config() Config { return p.t.cfg }

// Process analyzes one block and returns NumBands bands in ascending
// frequency order, reusing dst when it has enough capacity.
//
// block holds one slice per channel. Only the first two channels are used;
// a single channel is analyzed as mono with every pan at 0. Channels
// shorter than the window are zero padded and longer ones contribute their
// most recent samples. Non-finite samples are treated as silence. The block
// is not modified.
func (p *Processor) Process(block [][]float64, track int, dst []FrequencyBand) []FrequencyBand {
	t := p.t
	nch := min(len(block), stereoChannels)

	for c := range nch {
		p.analyzeChannel(c, block[c])
	}
	for c := nch; c < stereoChannels; c++ {
		clear(p.mags[c])
	}

	// louder channel, weighted, clamped and thresholded
	for k := range p.amp {
		a := p.mags[leftChannel][k]
		if nch > 1 {
			a = math.Max(a, p.mags[rightChannel][k])
		}
		a *= t.weights[k]
		switch {
		case !(a >= t.threshold):
			a = 0
		case a > 1:
			a = 1
		}
		p.amp[k] = a
	}

	if nch < stereoChannels {
		clear(p.pans)
	} else {
		p.est.Estimate(&p.input, p.pans)
	}

	n := len(p.amp)
	if cap(dst) < n {
		dst = make([]FrequencyBand, n)
	}
	dst = dst[:n]

	freqs := t.frequencies()
	for k := range dst {
		pk := pan.Clamp(p.pans[k])
		if p.amp[k] == 0 {
			pk = 0
		}
		dst[k] = FrequencyBand{
			Frequency: freqs[k],
			Amplitude: p.amp[k],
			Pan:       pk,
			Track:     track,
		}
	}
	return dst
}

// analyzeChannel windows and transforms one channel into spectra[c],
// bands[c] and normalized magnitudes mags[c].
func (p *Processor) analyzeChannel(c int, samples []float64) {
	t := p.t
	frame := p.frames[c]

	if len(samples) >= len(frame) {
		copy(frame, samples[len(samples)-len(frame):])
	} else {
		n := copy(frame, samples)
		clear(frame[n:])
	}
	spectral.Sanitize(frame)
	spectral.ApplyWindow(frame, frame, t.window)

	p.fft.Coefficients(p.spectra[c], frame)
	t.transform.Project(p.bands[c], p.spectra[c])

	mags := p.mags[c]
	for k, v := range p.bands[c] {
		mags[k] = cmplx.Abs(v)
	}
	f64.Scale(mags, mags, t.ampScale)
	for k, m := range mags {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			mags[k] = 0
		}
	}
}
