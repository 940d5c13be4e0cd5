package panorama

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame returns n bands stamped with seq so a torn read is detectable.
func frame(dst []FrequencyBand, n int, seq uint64) []FrequencyBand {
	dst = dst[:0]
	for k := range n {
		dst = append(dst, FrequencyBand{
			Frequency: float64(k),
			Amplitude: float64(seq),
			Pan:       -float64(seq),
			Track:     int(seq % MaxTracks),
		})
	}
	return dst
}

func TestResultSlot_Empty(t *testing.T) {
	var s ResultSlot

	bands, seq, ok := s.Load(make([]FrequencyBand, 4))
	assert.False(t, ok)
	assert.Empty(t, bands)
	assert.Zero(t, seq)

	latest, _ := s.Latest()
	assert.Nil(t, latest)
	assert.False(t, s.View(func([]FrequencyBand, uint64) { t.Fatal("nothing to view") }))
}

func TestResultSlot_LastWriterWins(t *testing.T) {
	var s ResultSlot

	for seq := uint64(1); seq <= 3; seq++ {
		require.True(t, s.publish(frame(nil, 4, seq), seq))
	}

	bands, seq, ok := s.Load(nil)
	require.True(t, ok)
	assert.Equal(t, uint64(3), seq)
	assert.Equal(t, frame(nil, 4, 3), bands)
	assert.Equal(t, uint64(3), s.Published())
	assert.Zero(t, s.Skipped())
}

func TestResultSlot_LoadCopies(t *testing.T) {
	var s ResultSlot
	src := frame(nil, 4, 1)
	require.True(t, s.publish(src, 1))

	src[0].Amplitude = 99
	bands, _, _ := s.Load(nil)
	assert.Equal(t, 1.0, bands[0].Amplitude, "publish must copy the bands")

	bands[1].Amplitude = 42
	again, _, _ := s.Load(nil)
	assert.Equal(t, 1.0, again[1].Amplitude, "load must copy the bands")
}

func TestResultSlot_SkipsWhileReaderHoldsInactiveBuffer(t *testing.T) {
	var s ResultSlot
	require.True(t, s.publish(frame(nil, 2, 1), 1))
	require.True(t, s.publish(frame(nil, 2, 2), 2))

	// a reader parked on the visible buffer blocks the publish after next
	ok := s.View(func(bands []FrequencyBand, seq uint64) {
		assert.Equal(t, uint64(2), seq)
		assert.True(t, s.publish(frame(nil, 2, 3), 3), "inactive buffer is free")
		assert.False(t, s.publish(frame(nil, 2, 4), 4), "reader still holds this buffer")
		assert.Equal(t, 2.0, bands[0].Amplitude, "held bands stay intact")
	})
	require.True(t, ok)

	_, seq, _ := s.Load(nil)
	assert.Equal(t, uint64(3), seq)
	assert.Equal(t, uint64(1), s.Skipped())
}

func TestResultSlot_PublishAtomicity(t *testing.T) {
	const (
		numBands   = 257
		readers    = 8
		iterations = 20000
	)
	var (
		s     ResultSlot
		wg    sync.WaitGroup
		done  atomic.Bool
		reads atomic.Int64
		torn  atomic.Int64
		short atomic.Int64
	)

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf []FrequencyBand
			var last uint64
			for !done.Load() {
				bands, seq, ok := s.Load(buf)
				buf = bands
				if !ok {
					continue
				}
				reads.Add(1)
				if len(bands) != numBands {
					short.Add(1)
					continue
				}
				if seq < last {
					torn.Add(1)
				}
				last = seq
				for k, b := range bands {
					if b.Amplitude != float64(seq) || b.Pan != -float64(seq) || b.Frequency != float64(k) {
						torn.Add(1)
						break
					}
				}
			}
		}()
	}

	var out []FrequencyBand
	for seq := uint64(1); seq <= iterations; seq++ {
		out = frame(out, numBands, seq)
		s.publish(out, seq)
	}
	done.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load(), "readers observed a mixed or regressing frame")
	assert.Zero(t, short.Load(), "readers observed a partial frame")
	assert.Positive(t, reads.Load())
	assert.Equal(t, uint64(iterations), s.Published()+s.Skipped())
}

func TestResults_Track(t *testing.T) {
	r := NewResults()

	for i := range MaxTracks {
		assert.NotNil(t, r.Track(i))
	}
	assert.Nil(t, r.Track(-1))
	assert.Nil(t, r.Track(MaxTracks))
	assert.NotSame(t, r.Track(0), r.Track(1))
}
