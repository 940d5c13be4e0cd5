package panorama

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-audio-panorama/internal/pan"
	"github.com/tphakala/go-audio-panorama/internal/spectral"
)

// Common errors returned by the analyzer.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid analyzer configuration")

	// ErrNotPrepared indicates the analyzer has no prepared session.
	ErrNotPrepared = errors.New("analyzer not prepared")

	// ErrClosed indicates the analyzer has been shut down.
	ErrClosed = errors.New("analyzer closed")

	// ErrTrackOutOfRange indicates a track index outside the prepared tracks.
	ErrTrackOutOfRange = errors.New("track index out of range")
)

// Transform selects the spectral transform.
type Transform int

const (
	// TransformFFT analyzes linearly spaced FFT bins.
	TransformFFT Transform = iota

	// TransformCQT projects the FFT onto log-spaced constant-Q bands.
	TransformCQT
)

// String returns the transform name.
func (t Transform) String() string {
	switch t {
	case TransformFFT:
		return "fft"
	case TransformCQT:
		return "cqt"
	default:
		return fmt.Sprintf("Transform(%d)", int(t))
	}
}

// PanMethod selects how the stereo position of a band is estimated.
type PanMethod int

const (
	// PanLevel uses the level difference between channels.
	PanLevel PanMethod = iota

	// PanTime uses the arrival-time difference between channels.
	PanTime

	// PanBlended mixes time cues at low frequency with level cues at high
	// frequency around a 2 kHz crossover.
	PanBlended
)

// String returns the pan method name.
func (m PanMethod) String() string {
	switch m {
	case PanLevel:
		return "level"
	case PanTime:
		return "time"
	case PanBlended:
		return "blended"
	default:
		return fmt.Sprintf("PanMethod(%d)", int(m))
	}
}

func (m PanMethod) estimator() pan.Method {
	switch m {
	case PanTime:
		return pan.Time
	case PanBlended:
		return pan.Blended
	default:
		return pan.Level
	}
}

// Weighting selects the frequency weighting applied to band amplitudes.
type Weighting int

const (
	// WeightingNone leaves amplitudes unweighted.
	WeightingNone Weighting = iota

	// WeightingA applies the A-weighting curve.
	WeightingA
)

// String returns the weighting name.
func (w Weighting) String() string {
	switch w {
	case WeightingNone:
		return "none"
	case WeightingA:
		return "a"
	default:
		return fmt.Sprintf("Weighting(%d)", int(w))
	}
}

func (w Weighting) curve() spectral.Weighting {
	if w == WeightingA {
		return spectral.WeightingA
	}
	return spectral.WeightingNone
}

// Config holds analysis configuration.
type Config struct {
	// SampleRate of the analyzed audio in Hz.
	SampleRate float64

	// NumTracks is the number of independent tracks, 1 to MaxTracks.
	NumTracks int

	// Transform selects FFT or constant-Q bands.
	Transform Transform

	// PanMethod selects the pan estimator.
	PanMethod PanMethod

	// Weighting selects the amplitude weighting curve.
	Weighting Weighting

	// WindowSize is the analysis block length in samples, a power of two.
	WindowSize int

	// HopSize is the stride between successive blocks. The analyzer does not
	// overlap blocks itself; hosts use it to frame their audio.
	HopSize int

	// CQTBins is the number of constant-Q bands.
	CQTBins int

	// MinFrequency is the centre frequency of the lowest constant-Q band in Hz.
	MinFrequency float64

	// MaxAmplitude is the linear amplitude reported as 1.
	MaxAmplitude float64

	// ThresholdDB is the level relative to MaxAmplitude below which band
	// amplitudes are reported as 0.
	ThresholdDB float64
}

// DefaultConfig returns the default configuration for a single track at 48 kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate:   defaultSampleRate,
		NumTracks:    defaultNumTracks,
		Transform:    TransformFFT,
		PanMethod:    PanBlended,
		Weighting:    WeightingNone,
		WindowSize:   defaultWindowSize,
		HopSize:      defaultHopSize,
		CQTBins:      defaultCQTBins,
		MinFrequency: defaultMinFrequency,
		MaxAmplitude: defaultMaxAmplitude,
		ThresholdDB:  defaultThresholdDB,
	}
}

// NumBands returns the number of bands the configuration produces.
func (c *Config) NumBands() int {
	if c.Transform == TransformCQT {
		return c.CQTBins
	}
	return spectral.BinCount(c.WindowSize)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}

	if c.NumTracks < 1 || c.NumTracks > MaxTracks {
		return fmt.Errorf("%w: tracks must be 1-%d", ErrInvalidConfig, MaxTracks)
	}

	if c.Transform != TransformFFT && c.Transform != TransformCQT {
		return fmt.Errorf("%w: unknown transform %v", ErrInvalidConfig, c.Transform)
	}

	if c.PanMethod < PanLevel || c.PanMethod > PanBlended {
		return fmt.Errorf("%w: unknown pan method %v", ErrInvalidConfig, c.PanMethod)
	}

	if c.Weighting != WeightingNone && c.Weighting != WeightingA {
		return fmt.Errorf("%w: unknown weighting %v", ErrInvalidConfig, c.Weighting)
	}

	if c.WindowSize < minWindowSize || c.WindowSize > maxWindowSize || !isPowerOfTwo(c.WindowSize) {
		return fmt.Errorf("%w: window size must be a power of two in %d-%d", ErrInvalidConfig, minWindowSize, maxWindowSize)
	}

	if c.HopSize < minHopSize || c.HopSize > c.WindowSize {
		return fmt.Errorf("%w: hop size must be 1-%d", ErrInvalidConfig, c.WindowSize)
	}

	if c.CQTBins < minCQTBins || c.CQTBins > maxCQTBins {
		return fmt.Errorf("%w: CQT bins must be %d-%d", ErrInvalidConfig, minCQTBins, maxCQTBins)
	}

	if !(c.MinFrequency > 0) || c.MinFrequency >= c.SampleRate/2 {
		return fmt.Errorf("%w: minimum frequency must be in (0, %g)", ErrInvalidConfig, c.SampleRate/2)
	}

	if !(c.MaxAmplitude > 0) || math.IsInf(c.MaxAmplitude, 0) {
		return fmt.Errorf("%w: max amplitude must be positive", ErrInvalidConfig)
	}

	if !(c.ThresholdDB >= minThresholdDB && c.ThresholdDB <= maxThresholdDB) {
		return fmt.Errorf("%w: threshold must be %g-%g dB", ErrInvalidConfig, minThresholdDB, maxThresholdDB)
	}

	return nil
}

// adjustment records a configuration value changed by normalize.
type adjustment struct {
	field     string
	requested float64
	applied   float64
}

// normalize clamps every setter-controlled field to its legal range and
// reports what it changed. Sample rate and track count are not touched.
func (c Config) normalize() (Config, []adjustment) {
	var adj []adjustment
	note := func(field string, requested, applied float64) {
		if requested != applied {
			adj = append(adj, adjustment{field: field, requested: requested, applied: applied})
		}
	}

	if c.Transform != TransformFFT && c.Transform != TransformCQT {
		note("transform", float64(c.Transform), float64(TransformFFT))
		c.Transform = TransformFFT
	}
	if c.PanMethod < PanLevel || c.PanMethod > PanBlended {
		note("pan_method", float64(c.PanMethod), float64(PanBlended))
		c.PanMethod = PanBlended
	}
	if c.Weighting != WeightingNone && c.Weighting != WeightingA {
		note("weighting", float64(c.Weighting), float64(WeightingNone))
		c.Weighting = WeightingNone
	}

	window := nextPowerOfTwo(min(max(c.WindowSize, minWindowSize), maxWindowSize))
	note("window_size", float64(c.WindowSize), float64(window))
	c.WindowSize = window

	hop := min(max(c.HopSize, minHopSize), c.WindowSize)
	note("hop_size", float64(c.HopSize), float64(hop))
	c.HopSize = hop

	bins := min(max(c.CQTBins, minCQTBins), maxCQTBins)
	note("cqt_bins", float64(c.CQTBins), float64(bins))
	c.CQTBins = bins

	hi := maxMinFrequency
	if c.SampleRate > 0 {
		hi = min(hi, c.SampleRate*minFrequencyNyquistFraction)
	}
	minFreq := clampFloat(c.MinFrequency, minMinFrequency, max(hi, minMinFrequency), defaultMinFrequency)
	note("min_frequency", c.MinFrequency, minFreq)
	c.MinFrequency = minFreq

	amp := clampFloat(c.MaxAmplitude, minMaxAmplitude, maxMaxAmplitude, defaultMaxAmplitude)
	note("max_amplitude", c.MaxAmplitude, amp)
	c.MaxAmplitude = amp

	thr := clampFloat(c.ThresholdDB, minThresholdDB, maxThresholdDB, defaultThresholdDB)
	note("threshold_db", c.ThresholdDB, thr)
	c.ThresholdDB = thr

	return c, adj
}

// clampFloat limits v to [lo, hi]; NaN becomes def.
func clampFloat(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return math.Min(math.Max(v, lo), hi)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
