package decoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLAC decodes native FLAC files.
type FLAC struct{}

// Extensions returns the FLAC file extension.
func (FLAC) Extensions() []string { return []string{"flac"} }

// Open parses the FLAC stream info from r.
func (FLAC) Open(r io.ReadSeeker) (Stream, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	info := stream.Info
	if info == nil || info.NChannels == 0 || info.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing FLAC stream info", ErrInvalidFile)
	}

	frames := int64(info.NSamples)
	rate := int(info.SampleRate)
	return &flacStream{
		stream: stream,
		source: r,
		format: Format{
			Name:       "flac",
			SampleRate: rate,
			Channels:   int(info.NChannels),
			BitDepth:   int(info.BitsPerSample),
			Frames:     frames,
			Duration:   durationOf(frames, rate),
		},
		scale: 1 / fullScale(int(info.BitsPerSample)),
	}, nil
}

type flacStream struct {
	stream *flac.Stream
	source io.Reader
	format Format
	scale  float64

	// current holds the frame being consumed, pos the next sample in it.
	current *frame.Frame
	pos     int
}

func (s *flacStream) Format() Format { return s.format }

func (s *flacStream) Read(dst [][]float64) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	want := len(dst[0])
	out := 0

	for out < want {
		if s.current == nil || s.pos >= len(s.current.Subframes[0].Samples) {
			f, err := s.stream.ParseNext()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return out, fmt.Errorf("failed to decode FLAC frame: %w", err)
			}
			if len(f.Subframes) == 0 {
				continue
			}
			s.current = f
			s.pos = 0
		}

		n := min(want-out, len(s.current.Subframes[0].Samples)-s.pos)
		for c := range min(len(dst), len(s.current.Subframes)) {
			src := s.current.Subframes[c].Samples[s.pos : s.pos+n]
			dc := dst[c][out : out+n]
			for i, v := range src {
				dc[i] = float64(v) * s.scale
			}
		}
		s.pos += n
		out += n
	}

	if out == 0 {
		return 0, io.EOF
	}
	return out, nil
}

func (s *flacStream) Close() error { return closeSource(s.source) }
