package panorama

import (
	"sync/atomic"
)

// slotBuffer is one of the two band buffers of a ResultSlot.
type slotBuffer struct {
	readers atomic.Int32
	seq     uint64
	bands   []FrequencyBand
}

// ResultSlot holds the most recent analysis of one track.
//
// A slot has exactly one writer, the track's worker, and any number of
// readers. The writer fills the buffer readers are not looking at and then
// flips the visible index, so a reader only ever sees complete results.
// Neither side locks or waits: a writer that finds a reader still inside
// the inactive buffer skips the publish, and a reader that loses a race
// with a flip retries a bounded number of times.
type ResultSlot struct {
	// visible is 0 before the first publish, otherwise 1 + buffer index.
	visible atomic.Uint32
	buffers [2]slotBuffer

	published atomic.Uint64
	skipped   atomic.Uint64
}

// publish copies bands into the inactive buffer and makes it visible.
// It returns false when the publish was skipped because a reader still
// held the inactive buffer. Only the slot's writer may call publish.
func (s *ResultSlot) publish(bands []FrequencyBand, seq uint64) bool {
	next := 0
	if v := s.visible.Load(); v == 1 {
		next = 1
	}

	buf := &s.buffers[next]
	if buf.readers.Load() != 0 {
		s.skipped.Add(1)
		return false
	}

	buf.bands = append(buf.bands[:0], bands...)
	buf.seq = seq
	s.visible.Store(uint32(next) + 1)
	s.published.Add(1)
	return true
}

// View calls fn with the visible bands and their block sequence number.
// The bands are only valid during fn and must not be modified or retained.
// View returns false if nothing has been published yet or the slot was
// flipping continuously while it tried.
func (s *ResultSlot) View(fn func(bands []FrequencyBand, seq uint64)) bool {
	for range loadAttempts {
		v := s.visible.Load()
		if v == 0 {
			return false
		}
		buf := &s.buffers[v-1]

		buf.readers.Add(1)
		if s.visible.Load() != v {
			// the writer may already be refilling this buffer
			buf.readers.Add(-1)
			continue
		}
		fn(buf.bands, buf.seq)
		buf.readers.Add(-1)
		return true
	}
	return false
}

// Load copies the visible bands into dst, growing it if needed, and
// returns them with their block sequence number. ok is false if no result
// is available; dst is then returned empty.
func (s *ResultSlot) Load(dst []FrequencyBand) (bands []FrequencyBand, seq uint64, ok bool) {
	dst = dst[:0]
	ok = s.View(func(b []FrequencyBand, n uint64) {
		dst = append(dst, b...)
		seq = n
	})
	return dst, seq, ok
}

// Latest returns a copy of the visible bands, or nil if none are available.
func (s *ResultSlot) Latest() ([]FrequencyBand, uint64) {
	bands, seq, ok := s.Load(nil)
	if !ok {
		return nil, 0
	}
	return bands, seq
}

// Published returns the number of completed publishes.
func (s *ResultSlot) Published() uint64 { return s.published.Load() }

// Skipped returns the number of publishes skipped because a reader held
// the inactive buffer.
func (s *ResultSlot) Skipped() uint64 { return s.skipped.Load() }

// Results is the host-owned storage for published analysis results, one
// slot per track. Hand it to an Analyzer with SetResults and keep it alive
// until it has been detached or the analyzer is closed.
type Results struct {
	slots [MaxTracks]ResultSlot
}

// NewResults returns empty result storage.
func NewResults() *Results {
	return &Results{}
}

// Track returns the slot of track i, or nil if i is out of range.
func (r *Results) Track(i int) *ResultSlot {
	if i < 0 || i >= MaxTracks {
		return nil
	}
	return &r.slots[i]
}
