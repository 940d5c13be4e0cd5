package pan

// Calibrated duplex-theory constants. They reproduce the reference tuning
// and have not been re-derived; adjust only against measured output.
const (
	// itdLowBound is the maximum interaural time difference at low frequency, seconds.
	itdLowBound = 0.66e-3

	// itdHighBound is the maximum interaural time difference at high frequency, seconds.
	itdHighBound = 0.8e-3

	// itdLowFreq and itdHighFreq bracket the log-frequency interpolation of the ITD bound.
	itdLowFreq  = 500.0
	itdHighFreq = 2000.0

	// crossoverFreq is where the ITD and ILD blend weights are equal, Hz.
	crossoverFreq = 2000.0

	// crossoverSlope controls how quickly the blend moves from ITD to ILD.
	crossoverSlope = 2.5
)

// Coherence gating constants.
const (
	// coherenceLowFloor applies at and below coherenceLowFreq.
	coherenceLowFloor = 0.5

	// coherenceHighFloor applies at and above coherenceHighFreq.
	coherenceHighFloor = 0.8

	coherenceLowFreq  = 200.0
	coherenceHighFreq = 8000.0

	// energyFloor is the band energy below which a channel counts as silent.
	energyFloor = 1e-18
)

const (
	// levelEpsilon keeps the level ratio finite for silent bands.
	levelEpsilon = 1e-12

	// parabolaDenomFloor guards the peak interpolation against flat tops.
	parabolaDenomFloor = 1e-30

	// minLagSamples keeps at least one lag either side of zero.
	minLagSamples = 1
)
