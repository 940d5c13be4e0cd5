package panorama

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tphakala/go-audio-panorama/internal/pipeline"
)

// TrackStats counts what happened to the blocks of one track.
type TrackStats struct {
	// Enqueued blocks accepted from the producer.
	Enqueued uint64 `json:"enqueued"`

	// Dropped blocks discarded because the queue was full.
	Dropped uint64 `json:"dropped"`

	// Discarded blocks still queued when a session stopped.
	Discarded uint64 `json:"discarded"`

	// Analyzed blocks processed by the worker.
	Analyzed uint64 `json:"analyzed"`

	// SkippedPublishes are results not published because a reader held
	// the inactive buffer.
	SkippedPublishes uint64 `json:"skipped_publishes"`
}

func (s *TrackStats) add(o TrackStats) {
	s.Enqueued += o.Enqueued
	s.Dropped += o.Dropped
	s.Discarded += o.Discarded
	s.Analyzed += o.Analyzed
	s.SkippedPublishes += o.SkippedPublishes
}

// track is the per-track state of a session: its queue, its processor and
// its output buffer. Only the track's worker touches proc and out.
type track struct {
	index int
	queue *pipeline.BlockQueue
	proc  *Processor
	out   []FrequencyBand

	analyzed  atomic.Uint64
	skipped   atomic.Uint64
	discarded atomic.Uint64
}

func (tr *track) stats() TrackStats {
	return TrackStats{
		Enqueued:         tr.queue.Pushed(),
		Dropped:          tr.queue.Dropped(),
		Discarded:        tr.discarded.Load(),
		Analyzed:         tr.analyzed.Load(),
		SkippedPublishes: tr.skipped.Load(),
	}
}

// session owns the workers of one prepared configuration. Workers only
// read the session's tables, and stop always joins them, so tables can be
// replaced once stop returns.
type session struct {
	tables  *tables
	tracks  []*track
	results *Results
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSession(t *tables, results *Results, queueCapacity int, logger *zap.Logger) *session {
	s := &session{
		tables:  t,
		tracks:  make([]*track, t.cfg.NumTracks),
		results: results,
		logger:  logger,
	}
	for i := range s.tracks {
		s.tracks[i] = &track{
			index: i,
			queue: pipeline.NewBlockQueue(queueCapacity, stereoChannels, t.cfg.WindowSize),
			proc:  newProcessor(t),
			out:   make([]FrequencyBand, t.numBands()),
		}
	}
	return s
}

// start launches one worker per track.
func (s *session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, tr := range s.tracks {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(ctx, tr)
		}()
	}

	s.logger.Debug("analysis workers started",
		zap.Int("tracks", len(s.tracks)),
		zap.Int("bands", s.tables.numBands()),
		zap.Stringer("transform", s.tables.cfg.Transform))
}

// run analyzes the blocks of one track in FIFO order until ctx is cancelled.
func (s *session) run(ctx context.Context, tr *track) {
	var slot *ResultSlot
	if s.results != nil {
		slot = s.results.Track(tr.index)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-tr.queue.Blocks():
			tr.out = tr.proc.Process(b.Data(), tr.index, tr.out)
			seq := b.Seq
			tr.queue.Release(b)
			tr.analyzed.Add(1)

			if slot != nil && !slot.publish(tr.out, seq) {
				tr.skipped.Add(1)
			}
		}
	}
}

// stop cancels the workers, waits for them to exit and discards any blocks
// they did not reach.
func (s *session) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	for _, tr := range s.tracks {
		if n := tr.queue.Drain(); n > 0 {
			tr.discarded.Add(uint64(n))
		}
	}

	s.logger.Debug("analysis workers stopped", zap.Int("tracks", len(s.tracks)))
}
