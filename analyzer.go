package panorama

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the lifecycle state of an Analyzer.
type State int32

const (
	// StateUnconfigured means Prepare has not succeeded yet.
	StateUnconfigured State = iota

	// StatePreparing means Prepare is building tables and workers.
	StatePreparing

	// StateReady means blocks are accepted and analyzed.
	StateReady

	// StateReconfiguring means workers are being replaced after a
	// configuration change; blocks are dropped.
	StateReconfiguring

	// StateShuttingDown means Close is stopping the workers.
	StateShuttingDown

	// StateStopped means the analyzer has been closed.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StateReconfiguring:
		return "reconfiguring"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Analyzer runs per-track spectral and stereo analysis in background
// workers fed from a real-time producer.
//
// EnqueueBlock is safe to call from an audio callback: it never blocks,
// allocates or takes a lock. Each track must be fed from one goroutine at
// a time. All other methods are control-plane calls and are serialized
// internally.
type Analyzer struct {
	mu            sync.Mutex
	cfg           Config
	results       *Results
	logger        *zap.Logger
	queueCapacity int
	totals        [MaxTracks]TrackStats

	state   atomic.Int32
	session atomic.Pointer[session]
}

// New creates an unprepared analyzer with the default configuration.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:           DefaultConfig(),
		logger:        zap.NewNop(),
		queueCapacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cfg = a.normalize(a.cfg)
	return a
}

// State returns the current lifecycle state.
func (a *Analyzer) State() State {
	return State(a.state.Load())
}

// IsPrepared reports whether the analyzer accepts blocks. A producer must
// drop its block when this returns false.
func (a *Analyzer) IsPrepared() bool {
	return a.State() == StateReady
}

// Prepare builds the analysis tables for sampleRate and starts one worker
// per track. Calling Prepare on a prepared analyzer replaces its session.
func (a *Analyzer) Prepare(sampleRate float64, numTracks int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.State() {
	case StateShuttingDown, StateStopped:
		return ErrClosed
	}

	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidConfig, sampleRate)
	}
	if numTracks < 1 || numTracks > MaxTracks {
		return fmt.Errorf("%w: tracks must be 1-%d, got %d", ErrInvalidConfig, MaxTracks, numTracks)
	}

	a.state.Store(int32(StatePreparing))
	a.stopSession()

	next := a.cfg
	next.SampleRate = sampleRate
	next.NumTracks = numTracks
	next = a.normalize(next)

	t, err := buildTables(next)
	if err != nil {
		a.state.Store(int32(StateUnconfigured))
		return err
	}
	a.cfg = next
	a.startSession(t)
	a.state.Store(int32(StateReady))

	a.logger.Info("analyzer prepared",
		zap.Float64("sample_rate", sampleRate),
		zap.Int("tracks", numTracks),
		zap.Int("bands", t.numBands()),
		zap.Stringer("transform", next.Transform),
		zap.Stringer("pan_method", next.PanMethod))
	return nil
}

// Close stops all workers. The analyzer cannot be prepared again.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() == StateStopped {
		return nil
	}
	a.state.Store(int32(StateShuttingDown))
	a.stopSession()
	a.state.Store(int32(StateStopped))
	a.logger.Debug("analyzer closed")
	return nil
}

// SetResults attaches the storage workers publish into. Passing nil
// detaches it; once SetResults returns, no worker touches the previous
// storage again.
func (a *Analyzer) SetResults(r *Results) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.results == r {
		return
	}
	a.results = r

	s := a.session.Load()
	if s == nil || a.State() != StateReady {
		return
	}
	a.state.Store(int32(StateReconfiguring))
	a.stopSession()
	a.startSession(s.tables)
	a.state.Store(int32(StateReady))
}

// EnqueueBlock hands one block of audio for track to its worker. block
// holds one slice per channel. It returns false if the block was not
// accepted because the analyzer is not ready or track is out of range.
// When the track's queue is full the oldest queued block is dropped.
func (a *Analyzer) EnqueueBlock(block [][]float64, track int) bool {
	if State(a.state.Load()) != StateReady {
		return false
	}
	s := a.session.Load()
	if s == nil || track < 0 || track >= len(s.tracks) {
		return false
	}
	return s.tracks[track].queue.Push(block)
}

// AnalyzeBlock analyzes one block synchronously with the prepared
// configuration. It does not touch the queues or the result storage.
func (a *Analyzer) AnalyzeBlock(block [][]float64, track int) ([]FrequencyBand, error) {
	s := a.session.Load()
	if s == nil {
		if a.State() == StateStopped {
			return nil, ErrClosed
		}
		return nil, ErrNotPrepared
	}
	if track < 0 || track >= len(s.tracks) {
		return nil, fmt.Errorf("%w: %d", ErrTrackOutOfRange, track)
	}
	return newProcessor(s.tables).Process(block, track, nil), nil
}

// Config returns the current configuration.
func (a *Analyzer) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// NumBands returns the number of bands per result, or 0 if not prepared.
func (a *Analyzer) NumBands() int {
	if s := a.session.Load(); s != nil {
		return s.tables.numBands()
	}
	return 0
}

// Frequencies returns a copy of the band centre frequencies, or nil if not
// prepared.
func (a *Analyzer) Frequencies() []float64 {
	s := a.session.Load()
	if s == nil {
		return nil
	}
	return append([]float64(nil), s.tables.frequencies()...)
}

// QueueCapacity returns how many blocks each track buffers before the
// oldest is dropped.
func (a *Analyzer) QueueCapacity() int { return a.queueCapacity }

// Stats returns the counters of track accumulated over every session.
func (a *Analyzer) Stats(track int) (TrackStats, error) {
	if track < 0 || track >= MaxTracks {
		return TrackStats{}, fmt.Errorf("%w: %d", ErrTrackOutOfRange, track)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.totals[track]
	if s := a.session.Load(); s != nil && track < len(s.tracks) {
		st.add(s.tracks[track].stats())
	}
	return st, nil
}

// SetWindowSize sets the analysis window length, rounded up to a power of two.
func (a *Analyzer) SetWindowSize(n int) {
	a.update(func(c *Config) { c.WindowSize = n })
}

// SetHopSize sets the stride between successive blocks.
func (a *Analyzer) SetHopSize(n int) {
	a.update(func(c *Config) { c.HopSize = n })
}

// SetTransform selects FFT or constant-Q bands.
func (a *Analyzer) SetTransform(t Transform) {
	a.update(func(c *Config) { c.Transform = t })
}

// SetPanMethod selects the pan estimator.
func (a *Analyzer) SetPanMethod(m PanMethod) {
	a.update(func(c *Config) { c.PanMethod = m })
}

// SetCQTBins sets the number of constant-Q bands.
func (a *Analyzer) SetCQTBins(n int) {
	a.update(func(c *Config) { c.CQTBins = n })
}

// SetMinFrequency sets the lowest constant-Q centre frequency in Hz.
func (a *Analyzer) SetMinFrequency(hz float64) {
	a.update(func(c *Config) { c.MinFrequency = hz })
}

// SetMaxAmplitude sets the linear amplitude reported as 1.
func (a *Analyzer) SetMaxAmplitude(v float64) {
	a.update(func(c *Config) { c.MaxAmplitude = v })
}

// SetThreshold sets the amplitude threshold in dB relative to the maximum
// amplitude.
func (a *Analyzer) SetThreshold(db float64) {
	a.update(func(c *Config) { c.ThresholdDB = db })
}

// SetWeighting selects the frequency weighting curve.
func (a *Analyzer) SetWeighting(w Weighting) {
	a.update(func(c *Config) { c.Weighting = w })
}

// update applies a setter. Out of range values are clamped with a warning.
// A prepared analyzer is quiesced and restarted with new tables.
func (a *Analyzer) update(fn func(*Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.State() == StateStopped {
		return
	}

	next := a.cfg
	fn(&next)
	next = a.normalize(next)
	if next == a.cfg {
		return
	}
	a.cfg = next

	if a.State() != StateReady {
		return
	}
	if err := a.reconfigure(); err != nil {
		a.logger.Error("reconfiguration failed", zap.Error(err))
	}
}

// reconfigure replaces the session with one built for a.cfg. The producer
// sees StateReconfiguring and drops blocks until the new workers run.
func (a *Analyzer) reconfigure() error {
	a.state.Store(int32(StateReconfiguring))
	a.stopSession()

	t, err := buildTables(a.cfg)
	if err != nil {
		a.state.Store(int32(StateUnconfigured))
		return err
	}
	a.startSession(t)
	a.state.Store(int32(StateReady))

	a.logger.Info("analyzer reconfigured",
		zap.Int("window_size", a.cfg.WindowSize),
		zap.Int("bands", t.numBands()),
		zap.Stringer("transform", a.cfg.Transform))
	return nil
}

// normalize clamps cfg and logs every adjustment.
func (a *Analyzer) normalize(cfg Config) Config {
	cfg, adj := cfg.normalize()
	for _, x := range adj {
		a.logger.Warn("configuration value clamped",
			zap.String("field", x.field),
			zap.Float64("requested", x.requested),
			zap.Float64("applied", x.applied))
	}
	return cfg
}

// errSessionActive is raised when a session is started while another one
// still has running workers.
var errSessionActive = errors.New("panorama: session started while workers are running")

// startSession launches workers for t. The caller must have stopped the
// previous session.
func (a *Analyzer) startSession(t *tables) {
	if a.session.Load() != nil {
		panic(errSessionActive)
	}
	s := newSession(t, a.results, a.queueCapacity, a.logger)
	s.start()
	a.session.Store(s)
}

// stopSession stops and joins the workers of the current session, if any,
// and folds its counters into the totals.
func (a *Analyzer) stopSession() {
	s := a.session.Swap(nil)
	if s == nil {
		return
	}
	s.stop()
	for i, tr := range s.tracks {
		a.totals[i].add(tr.stats())
	}
}
