package panorama

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tphakala/go-audio-panorama/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newPreparedAnalyzer(t *testing.T, tracks int, opts ...Option) (*Analyzer, *Results) {
	t.Helper()
	opts = append([]Option{WithConfig(testConfig(nil))}, opts...)
	a := New(opts...)
	t.Cleanup(func() { _ = a.Close() })

	results := NewResults()
	a.SetResults(results)
	require.NoError(t, a.Prepare(testSampleRate, tracks))
	return a, results
}

func toneBlock(amp float64) [][]float64 {
	tone := binTone(testBin, amp)
	return testutil.Stereo(tone, tone)
}

func TestAnalyzer_Unprepared(t *testing.T) {
	a := New()

	assert.Equal(t, StateUnconfigured, a.State())
	assert.False(t, a.IsPrepared())
	assert.False(t, a.EnqueueBlock(toneBlock(0.5), 0))
	assert.Zero(t, a.NumBands())
	assert.Nil(t, a.Frequencies())

	_, err := a.AnalyzeBlock(toneBlock(0.5), 0)
	require.ErrorIs(t, err, ErrNotPrepared)
}

func TestAnalyzer_QueueCapacity(t *testing.T) {
	assert.Equal(t, defaultQueueCapacity, New().QueueCapacity())
	assert.Equal(t, 1, New(WithQueueCapacity(0)).QueueCapacity())
	assert.Equal(t, maxQueueCapacity, New(WithQueueCapacity(maxQueueCapacity+1)).QueueCapacity())
}

func TestAnalyzer_PrepareRejectsInvalidSession(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		tracks int
	}{
		{"zero_rate", 0, 1},
		{"negative_rate", -44100, 1},
		{"no_tracks", testSampleRate, 0},
		{"too_many_tracks", testSampleRate, MaxTracks + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			err := a.Prepare(tt.rate, tt.tracks)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Equal(t, StateUnconfigured, a.State())
		})
	}
}

func TestAnalyzer_PrepareAndPublish(t *testing.T) {
	a, results := newPreparedAnalyzer(t, 2)

	assert.Equal(t, StateReady, a.State())
	assert.True(t, a.IsPrepared())
	assert.Equal(t, 513, a.NumBands())
	assert.Len(t, a.Frequencies(), 513)

	block := toneBlock(0.5)
	require.True(t, a.EnqueueBlock(block, 1))

	var bands []FrequencyBand
	require.Eventually(t, func() bool {
		var ok bool
		bands, _, ok = results.Track(1).Load(bands)
		return ok
	}, waitFor, tick)

	want, err := a.AnalyzeBlock(block, 1)
	require.NoError(t, err)
	assert.Equal(t, want, bands, "worker and synchronous analysis must agree")
	assert.InDelta(t, 0.5, bands[testBin].Amplitude, testutil.AmpTolerance)

	_, _, ok := results.Track(0).Load(nil)
	assert.False(t, ok, "tracks are independent")

	st, err := a.Stats(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Enqueued)
	assert.Equal(t, uint64(1), st.Analyzed)
}

func TestAnalyzer_TrackOutOfRange(t *testing.T) {
	a, _ := newPreparedAnalyzer(t, 2)

	assert.False(t, a.EnqueueBlock(toneBlock(0.5), 2))
	assert.False(t, a.EnqueueBlock(toneBlock(0.5), -1))

	_, err := a.AnalyzeBlock(toneBlock(0.5), 5)
	require.ErrorIs(t, err, ErrTrackOutOfRange)

	_, err = a.Stats(MaxTracks)
	require.ErrorIs(t, err, ErrTrackOutOfRange)
}

func TestAnalyzer_SettersClampAndWarn(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := New(WithLogger(zap.New(core)))

	a.SetWindowSize(1000)
	a.SetHopSize(0)
	a.SetCQTBins(-5)
	a.SetMinFrequency(1e9)
	a.SetMaxAmplitude(0)
	a.SetThreshold(12)
	a.SetTransform(Transform(7))
	a.SetPanMethod(PanMethod(-1))

	cfg := a.Config()
	assert.Equal(t, 1024, cfg.WindowSize)
	assert.Equal(t, minHopSize, cfg.HopSize)
	assert.Equal(t, minCQTBins, cfg.CQTBins)
	assert.Equal(t, defaultSampleRate*minFrequencyNyquistFraction, cfg.MinFrequency)
	assert.Equal(t, minMaxAmplitude, cfg.MaxAmplitude)
	assert.Equal(t, maxThresholdDB, cfg.ThresholdDB)
	assert.Equal(t, TransformFFT, cfg.Transform)
	assert.Equal(t, PanBlended, cfg.PanMethod)
	require.NoError(t, cfg.Validate())

	clamped := logs.FilterMessage("configuration value clamped")
	assert.Equal(t, 8, clamped.Len())
	fields := map[string]bool{}
	for _, entry := range clamped.All() {
		fields[entry.ContextMap()["field"].(string)] = true
	}
	assert.True(t, fields["hop_size"])
	assert.True(t, fields["min_frequency"])
}

func TestAnalyzer_SetterWithinRangeDoesNotWarn(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	a := New(WithLogger(zap.New(core)))

	a.SetWindowSize(4096)
	a.SetHopSize(1024)
	a.SetThreshold(-40)

	assert.Zero(t, logs.Len())
	assert.Equal(t, 4096, a.Config().WindowSize)
}

func TestAnalyzer_ReconfigureWhileReady(t *testing.T) {
	a, results := newPreparedAnalyzer(t, 1)
	require.True(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.Eventually(t, func() bool { return results.Track(0).Published() == 1 }, waitFor, tick)

	a.SetWindowSize(2048)
	assert.Equal(t, StateReady, a.State())
	assert.Equal(t, 1025, a.NumBands())

	a.SetTransform(TransformCQT)
	assert.Equal(t, testCQTBins, a.NumBands())

	require.True(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.Eventually(t, func() bool {
		bands, _, ok := results.Track(0).Load(nil)
		return ok && len(bands) == testCQTBins
	}, waitFor, tick)

	st, err := a.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Enqueued, "stats survive reconfiguration")
	assert.Equal(t, uint64(2), st.Analyzed)
}

func TestAnalyzer_SetResultsDetach(t *testing.T) {
	a, results := newPreparedAnalyzer(t, 1)

	require.True(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.Eventually(t, func() bool { return results.Track(0).Published() == 1 }, waitFor, tick)

	a.SetResults(nil)
	assert.Equal(t, StateReady, a.State())

	require.True(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.Eventually(t, func() bool {
		st, _ := a.Stats(0)
		return st.Analyzed == 2
	}, waitFor, tick)
	assert.Equal(t, uint64(1), results.Track(0).Published(), "detached storage must not be touched")

	fresh := NewResults()
	a.SetResults(fresh)
	require.True(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.Eventually(t, func() bool { return fresh.Track(0).Published() == 1 }, waitFor, tick)
}

func TestAnalyzer_Close(t *testing.T) {
	a, _ := newPreparedAnalyzer(t, 2)

	require.NoError(t, a.Close())
	assert.Equal(t, StateStopped, a.State())
	assert.False(t, a.IsPrepared())
	assert.False(t, a.EnqueueBlock(toneBlock(0.5), 0))
	require.ErrorIs(t, a.Prepare(testSampleRate, 1), ErrClosed)

	_, err := a.AnalyzeBlock(toneBlock(0.5), 0)
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, a.Close(), "close is idempotent")
}

func TestAnalyzer_ProducerDuringReconfiguration(t *testing.T) {
	a, results := newPreparedAnalyzer(t, 2, WithQueueCapacity(2))
	block := toneBlock(0.5)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for track := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					a.EnqueueBlock(block, track)
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		var buf []FrequencyBand
		for {
			select {
			case <-stop:
				return
			default:
				bands, _, ok := results.Track(0).Load(buf)
				buf = bands
				if ok {
					testutil.AssertAllInRange(t, amplitudes(bands), 0, 1)
				}
				runtime.Gosched()
			}
		}
	}()

	for _, n := range []int{512, 2048, 1024, 256} {
		a.SetWindowSize(n)
		a.SetPanMethod(PanTime)
		a.SetPanMethod(PanBlended)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, StateReady, a.State())
	assert.Equal(t, 129, a.NumBands())

	// the last session still analyzes once the producers are gone
	require.True(t, a.EnqueueBlock(block, 0))
	require.Eventually(t, func() bool {
		st, _ := a.Stats(0)
		return st.Analyzed > 0
	}, waitFor, tick)

	st, err := a.Stats(0)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.Analyzed+st.Dropped, st.Enqueued)
}
