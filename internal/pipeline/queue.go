// Package pipeline moves raw audio blocks from a real-time producer to a
// background consumer. Queues are bounded, preallocated and drop the oldest
// block when full so the producer never waits.
package pipeline

import (
	"sync/atomic"
)

// Block is one preallocated multichannel block of samples.
type Block struct {
	// Channels holds maxChannels buffers of blockSize samples each.
	Channels [][]float64

	// NumChannels is the number of channels filled by the producer.
	NumChannels int

	// Seq is the producer sequence number, starting at 1.
	Seq uint64
}

// Data returns the filled channels.
func (b *Block) Data() [][]float64 {
	return b.Channels[:b.NumChannels]
}

// BlockQueue is a bounded single-producer single-consumer FIFO of blocks.
//
// Blocks circulate between a free list and the queue; neither Push nor the
// consumer side allocates. When the queue is full, Push discards the oldest
// queued block to make room for the new one.
type BlockQueue struct {
	queue chan *Block
	free  chan *Block

	blockSize   int
	maxChannels int

	// seq is written by the producer only.
	seq uint64

	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewBlockQueue creates a queue holding up to capacity blocks of
// maxChannels × blockSize samples. All memory is allocated here.
func NewBlockQueue(capacity, maxChannels, blockSize int) *BlockQueue {
	capacity = max(capacity, minQueueCapacity)
	maxChannels = max(maxChannels, 1)
	blockSize = max(blockSize, 1)

	q := &BlockQueue{
		queue:       make(chan *Block, capacity),
		free:        make(chan *Block, capacity+spareBlocks),
		blockSize:   blockSize,
		maxChannels: maxChannels,
	}

	for range capacity + spareBlocks {
		b := &Block{Channels: make([][]float64, maxChannels)}
		for c := range b.Channels {
			b.Channels[c] = make([]float64, blockSize)
		}
		q.free <- b
	}

	return q
}

// Push copies channels into a free block and queues it. Channels beyond the
// queue's channel count are ignored; channels longer than the block size
// contribute their most recent samples and shorter ones are zero padded.
//
// Push never blocks. It returns false only when no block could be obtained,
// which happens when the consumer holds more blocks than it should.
func (q *BlockQueue) Push(channels [][]float64) bool {
	b := q.acquire()
	if b == nil {
		return false
	}

	b.NumChannels = min(len(channels), q.maxChannels)
	for c := range b.NumChannels {
		fill(b.Channels[c], channels[c])
	}
	q.seq++
	b.Seq = q.seq
	q.pushed.Add(1)

	for range maxPushAttempts {
		select {
		case q.queue <- b:
			return true
		default:
		}

		// full: discard the oldest queued block
		select {
		case old := <-q.queue:
			q.recycle(old)
			q.dropped.Add(1)
		default:
		}
	}

	q.recycle(b)
	q.dropped.Add(1)
	return false
}

// acquire returns a free block, stealing the oldest queued block if the
// free list is empty.
func (q *BlockQueue) acquire() *Block {
	select {
	case b := <-q.free:
		return b
	default:
	}

	select {
	case b := <-q.queue:
		q.dropped.Add(1)
		return b
	default:
		return nil
	}
}

func (q *BlockQueue) recycle(b *Block) {
	select {
	case q.free <- b:
	default:
	}
}

// fill copies src into dst, keeping the tail of src and zero padding dst.
func fill(dst, src []float64) {
	if len(src) >= len(dst) {
		copy(dst, src[len(src)-len(dst):])
		return
	}
	n := copy(dst, src)
	clear(dst[n:])
}

// Blocks returns the channel the consumer receives queued blocks from.
// Every received block must be handed back with Release.
func (q *BlockQueue) Blocks() <-chan *Block {
	return q.queue
}

// Release returns a consumed block to the free list.
func (q *BlockQueue) Release(b *Block) {
	if b == nil {
		return
	}
	b.NumChannels = 0
	q.recycle(b)
}

// Drain discards every queued block and returns how many were discarded.
// It must only be called once the consumer has stopped.
func (q *BlockQueue) Drain() int {
	n := 0
	for {
		select {
		case b := <-q.queue:
			q.Release(b)
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued blocks.
func (q *BlockQueue) Len() int { return len(q.queue) }

// Cap returns the queue capacity in blocks.
func (q *BlockQueue) Cap() int { return cap(q.queue) }

// BlockSize returns the number of samples per channel in each block.
func (q *BlockQueue) BlockSize() int { return q.blockSize }

// Pushed returns the number of blocks accepted from the producer.
func (q *BlockQueue) Pushed() uint64 { return q.pushed.Load() }

// Dropped returns the number of blocks discarded by backpressure.
func (q *BlockQueue) Dropped() uint64 { return q.dropped.Load() }
