package panorama

// MaxTracks is the number of tracks an analyzer can serve concurrently.
const MaxTracks = 8

// Channel constants
const (
	stereoChannels = 2 // Channels used for pan estimation; extra channels are ignored
	leftChannel    = 0
	rightChannel   = 1
)

// Default configuration
const (
	defaultSampleRate   = 48000.0
	defaultNumTracks    = 1
	defaultWindowSize   = 2048
	defaultHopSize      = 512
	defaultCQTBins      = 84
	defaultMinFrequency = 32.7 // C1
	defaultMaxAmplitude = 1.0
	defaultThresholdDB  = -60.0
)

// Configuration limits applied by the setters
const (
	minWindowSize = 64
	maxWindowSize = 32768

	minHopSize = 1

	minCQTBins = 1
	maxCQTBins = 1024

	minMinFrequency = 10.0
	maxMinFrequency = 20000.0

	// minFrequencyNyquistFraction keeps the lowest CQT band below half of
	// Nyquist so at least one octave is analyzed.
	minFrequencyNyquistFraction = 0.25

	minMaxAmplitude = 1e-6
	maxMaxAmplitude = 1e6

	minThresholdDB = -160.0
	maxThresholdDB = 0.0
)

// Worker and result constants
const (
	defaultQueueCapacity = 8 // Blocks buffered per track before dropping the oldest
	maxQueueCapacity     = 1024

	// loadAttempts bounds how often a reader retries after losing a race
	// with the writer's buffer flip.
	loadAttempts = 8

	dbScale = 20.0 // 20·log10 for amplitude ratios
)
