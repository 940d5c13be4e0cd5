// Package spectral implements the transform layer of the analyzer: Hann
// windowing, the short-time FFT, constant-Q projection of FFT output onto
// log-spaced band kernels, and frequency weighting curves.
package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/floats"
)

// HannWindow returns an n-point Hann window.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	return window.Hann(n)
}

// WindowGain returns the coherent gain of a window (the sum of its coefficients).
func WindowGain(coeffs []float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}
	return f64.Sum(coeffs)
}

// ApplyWindow writes samples multiplied by coeffs into dst.
// All three slices must have the same length.
func ApplyWindow(dst, samples, coeffs []float64) {
	floats.MulTo(dst, samples, coeffs)
}

// Sanitize replaces NaN and infinite samples with zero in place and returns
// how many samples were replaced.
func Sanitize(samples []float64) int {
	replaced := 0
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			samples[i] = 0
			replaced++
		}
	}
	return replaced
}
