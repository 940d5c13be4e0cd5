package pipeline

// Framer turns audio buffers of any length into overlapping frames of a
// fixed size advancing by hop samples. It holds one linear buffer per
// channel and never allocates after construction.
type Framer struct {
	bufs [][]float64
	size int
	hop  int
	fill int
}

// NewFramer creates a framer for channels channels emitting frames of size
// samples every hop samples. hop is limited to [1, size].
func NewFramer(channels, size, hop int) *Framer {
	channels = max(channels, 1)
	size = max(size, 1)
	hop = min(max(hop, 1), size)

	bufs := make([][]float64, channels)
	for c := range bufs {
		bufs[c] = make([]float64, size)
	}
	return &Framer{bufs: bufs, size: size, hop: hop}
}

// Write appends samples and calls emit for every completed frame. The frame
// passed to emit is only valid for the duration of the call. The number of
// frames written is taken from the first channel; missing channels are
// treated as silence.
func (f *Framer) Write(samples [][]float64, emit func(frame [][]float64)) {
	if len(samples) == 0 {
		return
	}
	total := len(samples[0])

	for off := 0; off < total; {
		n := min(f.size-f.fill, total-off)
		for c, buf := range f.bufs {
			dst := buf[f.fill : f.fill+n]
			if c < len(samples) && off+n <= len(samples[c]) {
				copy(dst, samples[c][off:off+n])
			} else {
				clear(dst)
			}
		}
		f.fill += n
		off += n

		if f.fill == f.size {
			emit(f.bufs)
			for _, buf := range f.bufs {
				copy(buf, buf[f.hop:])
			}
			f.fill = f.size - f.hop
		}
	}
}

// Pending returns the number of samples buffered towards the next frame.
func (f *Framer) Pending() int { return f.fill }

// Reset discards buffered samples.
func (f *Framer) Reset() {
	f.fill = 0
}
