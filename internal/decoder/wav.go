package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// wavUnsignedBitDepth is the only PCM width WAV stores unsigned.
	wavUnsignedBitDepth = 8

	bitsPerByte = 8
)

// WAV decodes RIFF/WAVE PCM files.
type WAV struct{}

// Extensions returns the WAV file extensions.
func (WAV) Extensions() []string { return []string{"wav", "wave"} }

// Open reads the WAV header from r.
func (WAV) Open(r io.ReadSeeker) (Stream, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}

	af := dec.Format()
	if af == nil || af.NumChannels < 1 || af.SampleRate < 1 {
		return nil, fmt.Errorf("%w: missing WAV format chunk", ErrInvalidFile)
	}
	bitDepth := int(dec.BitDepth)

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	frames := dec.PCMLen() / int64(af.NumChannels*bytesPerSample(bitDepth))
	duration := durationOf(frames, af.SampleRate)

	s := &wavStream{
		dec:    dec,
		source: r,
		format: Format{
			Name:       "wav",
			SampleRate: af.SampleRate,
			Channels:   af.NumChannels,
			BitDepth:   bitDepth,
			Frames:     frames,
			Duration:   duration,
		},
		buf:   &audio.IntBuffer{Format: af},
		scale: 1 / fullScale(bitDepth),
	}
	if bitDepth == wavUnsignedBitDepth {
		s.offset = -fullScale(bitDepth)
	}
	return s, nil
}

type wavStream struct {
	dec    *wav.Decoder
	source io.Reader
	format Format
	buf    *audio.IntBuffer
	scale  float64
	offset float64
}

func (s *wavStream) Format() Format { return s.format }

func (s *wavStream) Read(dst [][]float64) (int, error) {
	if len(dst) == 0 || len(dst[0]) == 0 {
		return 0, nil
	}
	ch := s.format.Channels
	need := len(dst[0]) * ch
	if cap(s.buf.Data) < need {
		s.buf.Data = make([]int, need)
	}
	s.buf.Data = s.buf.Data[:need]

	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read audio data: %w", err)
	}
	frames := n / ch
	if frames == 0 {
		return 0, io.EOF
	}

	data := s.buf.Data[:frames*ch]
	for c := range min(len(dst), ch) {
		out := dst[c]
		for i := range frames {
			out[i] = (float64(data[i*ch+c]) + s.offset) * s.scale
		}
	}
	return frames, nil
}

func (s *wavStream) Close() error { return closeSource(s.source) }

// bytesPerSample returns the storage width of one PCM sample.
func bytesPerSample(bitDepth int) int {
	return max((bitDepth+bitsPerByte-1)/bitsPerByte, 1)
}
