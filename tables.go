package panorama

import (
	"fmt"
	"math"

	"github.com/tphakala/go-audio-panorama/internal/pan"
	"github.com/tphakala/go-audio-panorama/internal/spectral"
)

// tables holds everything derived from a configuration that workers read
// while analyzing. A tables value is never modified after buildTables
// returns; a configuration change always produces a new one.
type tables struct {
	cfg       Config
	window    []float64
	transform spectral.Transformer
	weights   []float64
	pan       *pan.Tables

	// ampScale converts projected magnitudes to the [0, 1] output range.
	ampScale float64

	// threshold is ThresholdDB as a linear amplitude relative to MaxAmplitude.
	threshold float64
}

func buildTables(cfg Config) (*tables, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	win := spectral.HannWindow(cfg.WindowSize)

	var (
		tr  spectral.Transformer
		err error
	)
	switch cfg.Transform {
	case TransformCQT:
		tr, err = spectral.NewCQTTransform(cfg.SampleRate, cfg.WindowSize, cfg.CQTBins, cfg.MinFrequency, win)
	default:
		tr, err = spectral.NewFFTTransform(cfg.SampleRate, cfg.WindowSize, spectral.WindowGain(win))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	freqs := tr.Frequencies()
	return &tables{
		cfg:       cfg,
		window:    win,
		transform: tr,
		weights:   spectral.Weights(cfg.Weighting.curve(), freqs),
		pan:       pan.NewTables(freqs, cfg.SampleRate, cfg.WindowSize, tr),
		ampScale:  1 / cfg.MaxAmplitude,
		threshold: math.Pow(10, cfg.ThresholdDB/dbScale),
	}, nil
}

func (t *tables) numBands() int { return t.transform.NumBands() }

func (t *tables) frequencies() []float64 { return t.transform.Frequencies() }
