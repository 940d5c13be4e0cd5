// Package panorama analyzes streaming multichannel audio in real time and
// describes, per track and per frequency band, how loud the band is and
// where it sits in the stereo field.
//
// # Features
//
//   - Short-time FFT bands or log-spaced constant-Q bands
//   - Stereo position from level differences, time differences, or a
//     frequency-dependent blend of both (duplex theory)
//   - Optional A-weighting and a dB threshold relative to a configured
//     maximum amplitude
//   - Up to [MaxTracks] independent tracks, each with its own worker
//   - Wait-free handoff: the producer never blocks, and consumers read the
//     latest complete result without locks
//
// # Quick Start
//
// Create an analyzer, give it storage for results and prepare it:
//
//	a := panorama.New(panorama.WithLogger(logger))
//	results := panorama.NewResults()
//	a.SetResults(results)
//	if err := a.Prepare(48000, 2); err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
// From the audio callback, hand over one block per track:
//
//	a.EnqueueBlock([][]float64{left, right}, 0)
//
// From the rendering loop, read the latest bands of a track:
//
//	bands, seq, ok := results.Track(0).Load(bands)
//
// # Blocks and Framing
//
// Each block is analyzed independently with a Hann window of
// [Config.WindowSize] samples. Shorter blocks are zero padded and longer
// blocks contribute their most recent samples. Hosts that receive audio in
// arbitrary buffer sizes can produce overlapping blocks with a hop of
// [Config.HopSize] samples using a framer.
//
// # Pan Convention
//
// Pan runs from -1 (left) to +1 (right). A louder left channel, or a right
// channel that lags the left, gives a negative pan. Mono tracks report 0.
//
// # Backpressure
//
// Every track has a bounded queue. When a worker falls behind, the oldest
// queued block is dropped so latency stays bounded; drops are counted in
// [TrackStats].
//
// # Reconfiguration
//
// The setters clamp their argument to a legal range and log a warning
// instead of failing. Changing the configuration of a prepared analyzer
// stops and joins its workers, rebuilds the analysis tables and starts new
// workers. Blocks enqueued meanwhile are rejected.
package panorama
