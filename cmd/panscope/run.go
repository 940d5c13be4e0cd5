package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	panorama "github.com/tphakala/go-audio-panorama"
	"github.com/tphakala/go-audio-panorama/internal/decoder"
	"github.com/tphakala/go-audio-panorama/internal/pipeline"
)

func runAnalysis(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	stream, err := decoder.NewRegistry().Open(args[0])
	if err != nil {
		return err
	}
	defer stream.Close()

	format := stream.Format()
	tracks := trackCount(format.Channels)
	if tracks > panorama.MaxTracks {
		return fmt.Errorf("%d channels need %d tracks, at most %d are supported",
			format.Channels, tracks, panorama.MaxTracks)
	}
	logger.Debug("input opened",
		zap.String("path", args[0]),
		zap.String("format", format.Name),
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Duration("duration", format.Duration))

	analyzer := panorama.New(
		panorama.WithLogger(logger),
		panorama.WithConfig(cfg),
		panorama.WithQueueCapacity(queueCapacity),
	)
	defer analyzer.Close()

	results := panorama.NewResults()
	analyzer.SetResults(results)
	if err := analyzer.Prepare(float64(format.SampleRate), tracks); err != nil {
		return fmt.Errorf("failed to prepare analyzer: %w", err)
	}

	summary := newSummary(analyzer.Frequencies(), tracks)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(ctx, results, summary)
	}()

	elapsed, err := feed(ctx, stream, analyzer, tracks)
	if err != nil {
		return err
	}
	waitForDrain(analyzer, tracks)

	cancel()
	wg.Wait()
	summary.sample(results)

	rep := summary.report(args[0], format, analyzer.Config(), elapsed)
	for t := range tracks {
		st, err := analyzer.Stats(t)
		if err != nil {
			return err
		}
		rep.Tracks[t].Stats = st
	}

	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), rep)
	}
	writeText(cmd.OutOrStdout(), rep, topBands)
	return nil
}

// feed decodes the stream and hands every hop of audio to the analyzer.
func feed(ctx context.Context, stream decoder.Stream, analyzer *panorama.Analyzer, tracks int) (time.Duration, error) {
	format := stream.Format()
	cfg := analyzer.Config()

	buf := make([][]float64, format.Channels)
	for c := range buf {
		buf[c] = make([]float64, readFrames)
	}
	framers := make([]*pipeline.Framer, tracks)
	views := make([][][]float64, tracks)
	for t := range framers {
		ch := trackChannels(format.Channels, t)
		framers[t] = pipeline.NewFramer(ch, cfg.WindowSize, cfg.HopSize)
		views[t] = make([][]float64, ch)
	}

	var bar *progressbar.ProgressBar
	if !quiet && !jsonOutput {
		total := format.Frames
		if total <= 0 {
			total = -1
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetDescription("analyzing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowIts(),
		)
	}

	start := time.Now()
	var decoded int64
	for {
		if err := ctx.Err(); err != nil {
			return time.Since(start), err
		}

		n, err := stream.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return time.Since(start), err
		}

		for t, f := range framers {
			view := views[t]
			for c := range view {
				view[c] = buf[t*channelsPerTrack+c][:n]
			}
			f.Write(view, func(block [][]float64) {
				if !realtime {
					// offline runs keep every block
					waitForRoom(analyzer, t)
				}
				analyzer.EnqueueBlock(block, t)
			})
		}

		decoded += int64(n)
		if bar != nil {
			_ = bar.Add(n)
		}
		if realtime {
			pace(start, decoded, format.SampleRate)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return time.Since(start), nil
}

// pace sleeps until the wall clock catches up with the decoded audio.
func pace(start time.Time, frames int64, sampleRate int) {
	due := time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
	if ahead := due - time.Since(start); ahead > 0 {
		time.Sleep(ahead)
	}
}

// consume samples the result slots until ctx is done.
func consume(ctx context.Context, results *panorama.Results, s *summary) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(results)
		}
	}
}

// waitForDrain waits until every enqueued block has been analyzed or
// dropped, or the drain timeout passes.
func waitForDrain(analyzer *panorama.Analyzer, tracks int) {
	deadline := time.Now().Add(drainTimeout)
	for t := range tracks {
		for backlog(analyzer, t) > 0 && time.Now().Before(deadline) {
			time.Sleep(drainPoll)
		}
	}
}

// waitForRoom waits until track t can take another block without the
// oldest being dropped, or the drain timeout passes.
func waitForRoom(analyzer *panorama.Analyzer, t int) {
	limit := uint64(analyzer.QueueCapacity())
	if backlog(analyzer, t) < limit {
		return
	}
	deadline := time.Now().Add(drainTimeout)
	for backlog(analyzer, t) >= limit && time.Now().Before(deadline) {
		time.Sleep(drainPoll)
	}
}

// backlog returns the blocks of track t accepted but not yet analyzed,
// including the one its worker is processing.
func backlog(analyzer *panorama.Analyzer, t int) uint64 {
	st, err := analyzer.Stats(t)
	if err != nil {
		return 0
	}
	done := st.Analyzed + st.Dropped + st.Discarded
	if done >= st.Enqueued {
		return 0
	}
	return st.Enqueued - done
}

// trackCount returns the number of tracks needed for channels channels.
func trackCount(channels int) int {
	return (channels + channelsPerTrack - 1) / channelsPerTrack
}

// trackChannels returns how many channels track t carries.
func trackChannels(channels, t int) int {
	return min(channelsPerTrack, channels-t*channelsPerTrack)
}

func buildConfig() (panorama.Config, error) {
	cfg := panorama.DefaultConfig()

	transform, err := parseTransform(transformName)
	if err != nil {
		return cfg, err
	}
	method, err := parsePanMethod(panName)
	if err != nil {
		return cfg, err
	}
	weighting, err := parseWeighting(weightingName)
	if err != nil {
		return cfg, err
	}

	cfg.Transform = transform
	cfg.PanMethod = method
	cfg.Weighting = weighting
	cfg.WindowSize = windowSize
	cfg.HopSize = hopSize
	cfg.CQTBins = cqtBins
	cfg.MinFrequency = minFrequency
	cfg.MaxAmplitude = maxAmplitude
	cfg.ThresholdDB = thresholdDB
	return cfg, nil
}

func parseTransform(s string) (panorama.Transform, error) {
	for _, t := range []panorama.Transform{panorama.TransformFFT, panorama.TransformCQT} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transform %q (use fft or cqt)", s)
}

func parsePanMethod(s string) (panorama.PanMethod, error) {
	for _, m := range []panorama.PanMethod{panorama.PanLevel, panorama.PanTime, panorama.PanBlended} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown pan method %q (use level, time or blended)", s)
}

func parseWeighting(s string) (panorama.Weighting, error) {
	for _, w := range []panorama.Weighting{panorama.WeightingNone, panorama.WeightingA} {
		if strings.EqualFold(s, w.String()) {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown weighting %q (use none or a)", s)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}
