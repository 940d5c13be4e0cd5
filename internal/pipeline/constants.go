package pipeline

// Queue sizing
const (
	// spareBlocks are the blocks held outside the queue: one being filled by
	// the producer and one being analyzed by the consumer.
	spareBlocks = 2

	// minQueueCapacity is the smallest number of blocks a queue can hold.
	minQueueCapacity = 1

	// maxPushAttempts bounds the send/steal loop of a single push. With a
	// single producer the second send always finds room.
	maxPushAttempts = 4
)
