package panorama

import (
	"go.uber.org/zap"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for configuration warnings and lifecycle
// events. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithQueueCapacity sets how many blocks each track buffers before the
// oldest is dropped.
func WithQueueCapacity(n int) Option {
	return func(a *Analyzer) {
		a.queueCapacity = min(max(n, 1), maxQueueCapacity)
	}
}

// WithConfig sets the initial configuration. Setter-controlled fields are
// clamped the same way the setters clamp them; SampleRate and NumTracks are
// replaced by Prepare.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) {
		a.cfg = cfg
	}
}
