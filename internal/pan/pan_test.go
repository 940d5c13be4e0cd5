package pan

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-audio-panorama/internal/spectral"
	"github.com/tphakala/go-audio-panorama/internal/testutil"
)

const (
	testSampleRate = 48000.0
	testFFTSize    = 2048
	testDelay      = 10

	// bands between roughly 230 Hz and 940 Hz
	testLoBand = 10
	testHiBand = 40

	lagPanTolerance = 0.08
)

// fixture holds a transform and tables shared by the estimator tests.
type fixture struct {
	win    []float64
	fft    *fourier.FFT
	tr     *spectral.FFTTransform
	tables *Tables
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	win := spectral.HannWindow(testFFTSize)
	tr, err := spectral.NewFFTTransform(testSampleRate, testFFTSize, spectral.WindowGain(win))
	require.NoError(t, err)
	return &fixture{
		win:    win,
		fft:    fourier.NewFFT(testFFTSize),
		tr:     tr,
		tables: NewTables(tr.Frequencies(), testSampleRate, testFFTSize, tr),
	}
}

func (f *fixture) input(left, right []float64) *Input {
	spectrumOf := func(x []float64) ([]complex128, []float64) {
		windowed := make([]float64, len(x))
		spectral.ApplyWindow(windowed, x, f.win)
		s := f.fft.Coefficients(nil, windowed)
		bands := make([]complex128, f.tr.NumBands())
		f.tr.Project(bands, s)
		mags := make([]float64, len(bands))
		for i, b := range bands {
			mags[i] = cmplx.Abs(b)
		}
		return s, mags
	}

	in := &Input{Amplitude: make([]float64, f.tr.NumBands())}
	in.Left, in.LeftMag = spectrumOf(left)
	in.Right, in.RightMag = spectrumOf(right)
	for k := range in.Amplitude {
		in.Amplitude[k] = math.Max(in.LeftMag[k], in.RightMag[k])
	}
	return in
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "level", Level.String())
	assert.Equal(t, "time", Time.String())
	assert.Equal(t, "blended", Blended.String())
	assert.Equal(t, "unknown", Method(42).String())
}

func TestLevelPan(t *testing.T) {
	tests := []struct {
		name string
		l, r float64
		want float64
	}{
		{"hard_left", 1, 0, -1},
		{"hard_right", 0, 1, 1},
		{"centre", 0.5, 0.5, 0},
		{"silent", 0, 0, 0},
		{"left_louder", 0.75, 0.25, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, LevelPan(tt.l, tt.r), 1e-9)
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, Clamp(-3))
	assert.Equal(t, 1.0, Clamp(2))
	assert.Equal(t, 0.0, Clamp(math.NaN()))
	assert.Equal(t, 0.25, Clamp(0.25))
}

func TestITDWeight_DuplexShape(t *testing.T) {
	assert.InDelta(t, 1.0, ITDWeight(0), 1e-12)
	assert.InDelta(t, 0.5, ITDWeight(crossoverFreq), 1e-12)
	assert.Less(t, ITDWeight(16000), 0.01)

	prev := ITDWeight(1)
	for f := 10.0; f < 24000; f *= 1.1 {
		w := ITDWeight(f)
		assert.LessOrEqual(t, w, prev, "ITD weight must not rise with frequency (f=%g)", f)
		testutil.AssertAllInRange(t, []float64{w, 1 - w}, 0, 1)
		prev = w
	}
}

func TestMaxITD_Bounds(t *testing.T) {
	assert.InDelta(t, itdLowBound, MaxITD(100), 1e-15)
	assert.InDelta(t, itdHighBound, MaxITD(10000), 1e-15)

	mid := MaxITD(1000)
	assert.Greater(t, mid, itdLowBound)
	assert.Less(t, mid, itdHighBound)
}

func TestCoherenceFloor_Rises(t *testing.T) {
	assert.InDelta(t, coherenceLowFloor, CoherenceFloor(50), 1e-12)
	assert.InDelta(t, coherenceHighFloor, CoherenceFloor(20000), 1e-12)
	assert.Less(t, CoherenceFloor(500), CoherenceFloor(4000))
}

func TestEstimators_CentredSignal(t *testing.T) {
	f := newFixture(t)
	sig := testutil.Noise(testFFTSize, 0.5, 1)
	in := f.input(sig, sig)

	for _, method := range []Method{Level, Time, Blended} {
		t.Run(method.String(), func(t *testing.T) {
			out := make([]float64, f.tables.NumBands())
			New(method, f.tables).Estimate(in, out)

			for k, p := range out {
				assert.InDelta(t, 0, p, 1e-6, "band %d", k)
			}
		})
	}
}

func TestTimeEstimator_DelayedRight(t *testing.T) {
	f := newFixture(t)
	sig := testutil.Noise(testFFTSize, 0.5, 7)

	tests := []struct {
		name  string
		delay int
		sign  float64
	}{
		{"right_lags_source_left", testDelay, -1},
		{"left_lags_source_right", -testDelay, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(sig, testutil.Delayed(sig, tt.delay))
			out := make([]float64, f.tables.NumBands())
			New(Time, f.tables).Estimate(in, out)

			for k := testLoBand; k <= testHiBand; k++ {
				want := tt.sign * testDelay / f.tables.MaxLagAt(k)
				assert.InDelta(t, want, out[k], lagPanTolerance, "band %d", k)
			}
		})
	}
}

func TestEstimators_SilentRight(t *testing.T) {
	f := newFixture(t)
	sig := testutil.Noise(testFFTSize, 0.5, 3)
	in := f.input(sig, make([]float64, testFFTSize))
	n := f.tables.NumBands()

	level := make([]float64, n)
	New(Level, f.tables).Estimate(in, level)
	timed := make([]float64, n)
	New(Time, f.tables).Estimate(in, timed)
	blended := make([]float64, n)
	New(Blended, f.tables).Estimate(in, blended)

	for k := 1; k < n; k++ {
		if in.Amplitude[k] == 0 {
			continue
		}
		assert.InDelta(t, -1, level[k], 1e-6, "level band %d", k)
		assert.Zero(t, timed[k], "silent channel makes the time cue unreliable (band %d)", k)
		assert.InDelta(t, -1, blended[k], 1e-6, "blend falls back to level (band %d)", k)
	}
}

func TestEstimators_SkipInactiveBands(t *testing.T) {
	f := newFixture(t)
	sig := testutil.Noise(testFFTSize, 0.5, 5)
	in := f.input(sig, make([]float64, testFFTSize))
	clear(in.Amplitude)

	out := make([]float64, f.tables.NumBands())
	for i := range out {
		out[i] = 0.7
	}
	New(Blended, f.tables).Estimate(in, out)
	testutil.AssertAllInRange(t, out, 0, 0)
}

func TestTimeEstimator_NonFiniteSpectrum(t *testing.T) {
	f := newFixture(t)
	sig := testutil.Noise(testFFTSize, 0.5, 9)
	in := f.input(sig, sig)
	in.Left[20] = complex(math.NaN(), 0)

	out := make([]float64, f.tables.NumBands())
	New(Time, f.tables).Estimate(in, out)

	testutil.AssertNoNaNOrInf(t, out)
	testutil.AssertAllInRange(t, out, -1, 1)
}
