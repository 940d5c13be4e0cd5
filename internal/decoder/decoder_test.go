package decoder

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate     = 8000
	testBitDepth = 16
	testFrames   = 1000
	pcmFormat    = 1
)

// writeWAV writes an interleaved 16-bit file and returns its path.
func writeWAV(t *testing.T, channels int, sample func(frame, ch int) int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 0, testFrames*channels)
	for i := range testFrames {
		for c := range channels {
			data = append(data, sample(i, c))
		}
	}

	enc := wav.NewEncoder(f, testRate, testBitDepth, channels, pcmFormat)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: testRate},
		SourceBitDepth: testBitDepth,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"flac", "wav", "wave"}, r.Extensions())

	d, err := r.Lookup("/music/Track.WAV")
	require.NoError(t, err)
	assert.IsType(t, WAV{}, d)

	d, err = r.Lookup("song.flac")
	require.NoError(t, err)
	assert.IsType(t, FLAC{}, d)

	_, err = r.Lookup("song.mp3")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = r.Lookup("README")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWAV_ReadStereo(t *testing.T) {
	path := writeWAV(t, 2, func(i, c int) int {
		if c == 0 {
			return i * 16
		}
		return -i * 16
	})

	s, err := NewRegistry().Open(path)
	require.NoError(t, err)
	defer s.Close()

	format := s.Format()
	assert.Equal(t, "wav", format.Name)
	assert.Equal(t, testRate, format.SampleRate)
	assert.Equal(t, 2, format.Channels)
	assert.Equal(t, testBitDepth, format.BitDepth)
	assert.Equal(t, int64(testFrames), format.Frames, "header bytes must not count as audio")
	assert.Equal(t, durationOf(testFrames, testRate), format.Duration)

	dst := [][]float64{make([]float64, 300), make([]float64, 300)}
	total := 0
	for {
		n, err := s.Read(dst)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		for i := range n {
			frame := total + i
			assert.InDelta(t, float64(frame*16)/32768, dst[0][i], 1e-12)
			assert.InDelta(t, -float64(frame*16)/32768, dst[1][i], 1e-12)
		}
		total += n
	}
	assert.Equal(t, testFrames, total)
}

func TestWAV_SkipsChannelsWithoutDestination(t *testing.T) {
	path := writeWAV(t, 3, func(i, c int) int { return (c + 1) * 1000 })

	s, err := NewRegistry().Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, int64(testFrames), s.Format().Frames)

	dst := [][]float64{make([]float64, 64)}
	n, err := s.Read(dst)
	require.NoError(t, err)
	require.Positive(t, n)
	assert.InDelta(t, 1000.0/32768, dst[0][0], 1e-12)
}

func TestWAV_InvalidFile(t *testing.T) {
	_, err := WAV{}.Open(bytes.NewReader([]byte("definitely not a riff header")))
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestFLAC_InvalidFile(t *testing.T) {
	_, err := FLAC{}.Open(bytes.NewReader([]byte("fLaX garbage")))
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestBytesPerSample(t *testing.T) {
	assert.Equal(t, 1, bytesPerSample(8))
	assert.Equal(t, 2, bytesPerSample(16))
	assert.Equal(t, 3, bytesPerSample(24))
	assert.Equal(t, 4, bytesPerSample(32))
}

func TestFullScale(t *testing.T) {
	assert.Equal(t, 128.0, fullScale(8))
	assert.Equal(t, 32768.0, fullScale(16))
	assert.Equal(t, 8388608.0, fullScale(24))
	assert.Equal(t, 1.0, fullScale(0))
}
