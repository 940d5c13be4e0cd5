// Package decoder opens audio files as streams of per-channel float64
// samples in [-1, 1].
package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var (
	// ErrUnsupportedFormat indicates no decoder is registered for a file.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidFile indicates the file is not a valid stream of its format.
	ErrInvalidFile = errors.New("invalid audio file")
)

// Format describes a decoded stream.
type Format struct {
	Name       string        `json:"format"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Frames     int64         `json:"frames"`
	Duration   time.Duration `json:"duration"`
}

// Stream delivers decoded audio.
type Stream interface {
	// Format returns the stream format.
	Format() Format

	// Read decodes up to len(dst[0]) frames, writing channel c into dst[c].
	// Channels without a destination slice are skipped. It returns the
	// number of frames written, and io.EOF once the stream is exhausted.
	Read(dst [][]float64) (int, error)

	// Close releases the stream and its source.
	Close() error
}

// Decoder opens streams of one container format.
type Decoder interface {
	// Open decodes the header of r. The returned stream closes r if r is an
	// io.Closer.
	Open(r io.ReadSeeker) (Stream, error)

	// Extensions returns the lowercase file extensions handled, without dots.
	Extensions() []string
}

// Registry maps file extensions to decoders.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry returns a registry with the WAV and FLAC decoders registered.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(WAV{})
	r.Register(FLAC{})
	return r
}

// Register adds d for all of its extensions, replacing earlier decoders.
func (r *Registry) Register(d Decoder) {
	for _, ext := range d.Extensions() {
		r.decoders[strings.ToLower(ext)] = d
	}
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Lookup returns the decoder for path's extension.
func (r *Registry) Lookup(path string) (Decoder, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil, fmt.Errorf("%w: no file extension: %s", ErrUnsupportedFormat, path)
	}
	d, ok := r.decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return d, nil
}

// Open opens path with the decoder registered for its extension.
func (r *Registry) Open(path string) (Stream, error) {
	d, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	s, err := d.Open(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// fullScale returns the magnitude of a full-scale integer sample.
func fullScale(bitDepth int) float64 {
	if bitDepth < 1 {
		return 1
	}
	return float64(int64(1) << (bitDepth - 1))
}

func closeSource(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func durationOf(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}
