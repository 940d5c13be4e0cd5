package main

import "time"

const (
	version = "0.1.0"

	// Channels grouped into one analyzer track
	channelsPerTrack = 2

	// Frames decoded per read
	readFrames = 4096

	// How often the consumer samples the result slots
	sampleInterval = 10 * time.Millisecond

	// Time allowed for the workers to empty their queues after the input ends
	drainTimeout = 5 * time.Second
	drainPoll    = time.Millisecond

	// Default number of bands listed per track in text output
	defaultTopBands = 10

	// Pan values closer to zero than this are printed as centred
	centreTolerance = 0.05
)
