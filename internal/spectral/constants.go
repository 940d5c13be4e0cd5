package spectral

// Spectrum geometry constants.
const (
	// fftHermitianDivisor gives the unique bins of a real FFT: N/2 + 1.
	fftHermitianDivisor = 2

	// coherentGainFactor converts the one-sided modulus of a windowed
	// sinusoid back to its peak amplitude (energy is split between the
	// positive and negative frequency halves).
	coherentGainFactor = 2.0

	// fftSupportHalfSpan is the number of neighbouring bins on each side of
	// an FFT band that take part in the time-difference estimate.
	fftSupportHalfSpan = 2
)

// Constant-Q kernel constants.
const (
	// kernelFloor is the magnitude, relative to the kernel peak, below which
	// spectral kernel coefficients are dropped.
	kernelFloor = 0.005

	// minKernelLength keeps the shortest (highest) kernels long enough to
	// carry a Hann taper.
	minKernelLength = 8

	// minBinsPerBand is the smallest CQT bin count that still forms a band axis.
	minBinsPerBand = 1
)

// A-weighting pole frequencies in Hz (IEC 61672-1).
const (
	aWeightPole1 = 20.598997
	aWeightPole2 = 107.65265
	aWeightPole3 = 737.86223
	aWeightPole4 = 12194.217

	// aWeightOffsetDB normalizes the curve to 0 dB at 1 kHz.
	aWeightOffsetDB = 2.0
)
