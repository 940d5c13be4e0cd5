package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"slices"
	"sync"
	"time"

	panorama "github.com/tphakala/go-audio-panorama"
	"github.com/tphakala/go-audio-panorama/internal/decoder"
)

// bandTotals accumulates the sampled results of one band.
type bandTotals struct {
	amplitude float64
	weighted  float64 // sum of amplitude * pan
	peak      float64
}

// summary accumulates results sampled from the result slots. Each published
// result is counted once, however often it is sampled.
type summary struct {
	mu      sync.Mutex
	freqs   []float64
	bands   [][]bandTotals
	samples []uint64
	lastSeq []uint64
}

func newSummary(freqs []float64, tracks int) *summary {
	s := &summary{
		freqs:   freqs,
		bands:   make([][]bandTotals, tracks),
		samples: make([]uint64, tracks),
		lastSeq: make([]uint64, tracks),
	}
	for t := range s.bands {
		s.bands[t] = make([]bandTotals, len(freqs))
	}
	return s
}

// sample adds the currently visible result of every track.
func (s *summary) sample(results *panorama.Results) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for t := range s.bands {
		results.Track(t).View(func(bands []panorama.FrequencyBand, seq uint64) {
			s.add(t, bands, seq)
		})
	}
}

func (s *summary) add(t int, bands []panorama.FrequencyBand, seq uint64) {
	if seq == s.lastSeq[t] || len(bands) != len(s.bands[t]) {
		return
	}
	s.lastSeq[t] = seq
	s.samples[t]++

	totals := s.bands[t]
	for i, b := range bands {
		totals[i].amplitude += b.Amplitude
		totals[i].weighted += b.Amplitude * b.Pan
		totals[i].peak = max(totals[i].peak, b.Amplitude)
	}
}

type bandReport struct {
	Frequency     float64 `json:"frequency"`
	MeanAmplitude float64 `json:"mean_amplitude"`
	PeakAmplitude float64 `json:"peak_amplitude"`
	Pan           float64 `json:"pan"`
}

type trackReport struct {
	Track   int                 `json:"track"`
	Samples uint64              `json:"samples"`
	Stats   panorama.TrackStats `json:"stats"`
	Bands   []bandReport        `json:"bands"`
}

type report struct {
	File       string         `json:"file"`
	Format     decoder.Format `json:"format"`
	Transform  string         `json:"transform"`
	PanMethod  string         `json:"pan_method"`
	Weighting  string         `json:"weighting"`
	WindowSize int            `json:"window_size"`
	HopSize    int            `json:"hop_size"`
	Elapsed    time.Duration  `json:"elapsed"`
	Tracks     []trackReport  `json:"tracks"`
}

// report builds the per-band means. Pan is the amplitude-weighted mean pan,
// so silent stretches do not pull a band towards the centre.
func (s *summary) report(path string, format decoder.Format, cfg panorama.Config, elapsed time.Duration) *report {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := &report{
		File:       path,
		Format:     format,
		Transform:  cfg.Transform.String(),
		PanMethod:  cfg.PanMethod.String(),
		Weighting:  cfg.Weighting.String(),
		WindowSize: cfg.WindowSize,
		HopSize:    cfg.HopSize,
		Elapsed:    elapsed,
		Tracks:     make([]trackReport, len(s.bands)),
	}

	for t, totals := range s.bands {
		tr := trackReport{
			Track:   t,
			Samples: s.samples[t],
			Bands:   make([]bandReport, len(totals)),
		}
		for i, b := range totals {
			br := bandReport{Frequency: s.freqs[i], PeakAmplitude: b.peak}
			if s.samples[t] > 0 {
				br.MeanAmplitude = b.amplitude / float64(s.samples[t])
			}
			if b.amplitude > 0 {
				br.Pan = b.weighted / b.amplitude
			}
			tr.Bands[i] = br
		}
		rep.Tracks[t] = tr
	}
	return rep
}

func writeJSON(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// writeText prints the top loudest bands of every track, loudest first.
func writeText(w io.Writer, rep *report, top int) {
	fmt.Fprintf(w, "\n=== %s ===\n", filepath.Base(rep.File))
	fmt.Fprintf(w, "Format:    %s, %d Hz, %d ch, %d bit, %.2fs\n",
		rep.Format.Name, rep.Format.SampleRate, rep.Format.Channels, rep.Format.BitDepth,
		rep.Format.Duration.Seconds())
	fmt.Fprintf(w, "Analysis:  %s, %s pan, %s weighting, window %d, hop %d\n",
		rep.Transform, rep.PanMethod, rep.Weighting, rep.WindowSize, rep.HopSize)
	fmt.Fprintf(w, "Elapsed:   %v\n", rep.Elapsed.Round(time.Millisecond))

	for _, tr := range rep.Tracks {
		fmt.Fprintf(w, "\n--- Track %d (%d results sampled) ---\n", tr.Track, tr.Samples)
		fmt.Fprintf(w, "Blocks: %d enqueued, %d analyzed, %d dropped, %d discarded, %d publishes skipped\n",
			tr.Stats.Enqueued, tr.Stats.Analyzed, tr.Stats.Dropped, tr.Stats.Discarded, tr.Stats.SkippedPublishes)

		bands := loudest(tr.Bands, top)
		if len(bands) == 0 {
			fmt.Fprintln(w, "No band rose above the threshold")
			continue
		}
		fmt.Fprintf(w, "%12s  %8s  %8s  %s\n", "Frequency", "Mean", "Peak", "Position")
		for _, b := range bands {
			fmt.Fprintf(w, "%10.1f Hz  %8.4f  %8.4f  %s\n", b.Frequency, b.MeanAmplitude, b.PeakAmplitude, position(b.Pan))
		}
	}
}

// loudest returns up to top bands with a non-zero mean amplitude, loudest
// first. top <= 0 returns all of them.
func loudest(bands []bandReport, top int) []bandReport {
	out := make([]bandReport, 0, len(bands))
	for _, b := range bands {
		if b.MeanAmplitude > 0 {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b bandReport) int {
		switch {
		case a.MeanAmplitude > b.MeanAmplitude:
			return -1
		case a.MeanAmplitude < b.MeanAmplitude:
			return 1
		}
		return 0
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// position renders a pan value as L/C/R with its magnitude.
func position(pan float64) string {
	switch {
	case math.Abs(pan) < centreTolerance:
		return "C"
	case pan < 0:
		return fmt.Sprintf("L %.2f", -pan)
	default:
		return fmt.Sprintf("R %.2f", pan)
	}
}
