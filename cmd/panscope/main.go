// Command panscope streams an audio file through the panorama analyzer and
// prints where each frequency band sits in the stereo field.
//
// Usage:
//
//	panscope music.flac
//	panscope --transform cqt --cqt-bins 96 --weighting a music.wav
//	panscope --realtime --json music.wav > bands.json
//
// Every pair of channels is analyzed as one track, so a 5.1 file produces
// three tracks. A trailing odd channel is analyzed as a mono track.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	windowSize    int
	hopSize       int
	transformName string
	panName       string
	weightingName string
	cqtBins       int
	minFrequency  float64
	maxAmplitude  float64
	thresholdDB   float64
	queueCapacity int
	topBands      int
	jsonOutput    bool
	quiet         bool
	verbose       bool
	realtime      bool
)

var rootCmd = &cobra.Command{
	Use:   "panscope [file]",
	Short: "Measure per-band loudness and stereo position of an audio file",
	Long: `panscope decodes a WAV or FLAC file, feeds it block by block to the
panorama analyzer and samples the published results the way a display would.

For every band it reports the mean and peak amplitude and the
amplitude-weighted mean pan position, where -1 is hard left and +1 is hard
right.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalysis,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVarP(&windowSize, "window", "w", 2048, "analysis window size in samples (power of two)")
	flags.IntVar(&hopSize, "hop", 512, "hop between analysis windows in samples")
	flags.StringVarP(&transformName, "transform", "t", "fft", "band layout: fft or cqt")
	flags.StringVarP(&panName, "pan", "p", "blended", "pan estimator: level, time or blended")
	flags.StringVar(&weightingName, "weighting", "none", "amplitude weighting: none or a")
	flags.IntVar(&cqtBins, "cqt-bins", 84, "number of constant-Q bands")
	flags.Float64Var(&minFrequency, "min-freq", 32.7, "lowest constant-Q band in Hz")
	flags.Float64Var(&maxAmplitude, "max-amp", 1.0, "linear amplitude reported as 1")
	flags.Float64Var(&thresholdDB, "threshold", -60, "silence threshold in dB relative to max-amp")
	flags.IntVar(&queueCapacity, "queue", 8, "blocks buffered per track before the oldest is dropped")
	flags.IntVarP(&topBands, "top", "n", defaultTopBands, "bands listed per track in text output (0 lists all)")
	flags.BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log analyzer events to stderr")
	flags.BoolVar(&realtime, "realtime", false, "feed the analyzer at playback speed, dropping blocks the workers miss")

	rootCmd.SetVersionTemplate("panscope version {{.Version}}\n")
	rootCmd.Version = version
}
