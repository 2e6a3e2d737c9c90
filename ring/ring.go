// Package ring provides a lock-free single-producer single-consumer queue
// of interleaved stereo float32 frames for the preview path.
//
// Overflow drops the oldest buffered frames and underflow is filled with
// silence: a live preview prefers low latency over completeness.
package ring

import (
	"sync/atomic"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/log"
)

// Capacity bounds in frames.
const (
	MinFrames = 2048
	MaxFrames = 32768

	// callbacksBuffered is how many callbacks worth of audio fit.
	callbacksBuffered = 64
	channels          = rtfx.NumChannels
)

// Capacity returns ring capacity in frames for a callback size: the next
// power of two of 64 callbacks, clamped to [MinFrames, MaxFrames].
// Non-positive callback size gives MinFrames.
func Capacity(framesPerCallback int) int {
	target := MinFrames
	if framesPerCallback > 0 {
		target = min(MaxFrames, max(MinFrames, framesPerCallback*callbacksBuffered))
	}
	return nextPow2(target)
}

func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}

// Stats is a snapshot of ring counters.
type Stats struct {
	Capacity     int
	Available    int
	Dropped      uint64
	Underflow    uint64
	RateMismatch bool
}

// Buffer is the frame queue. Enqueue must only be called by one producer
// goroutine and Dequeue by one consumer goroutine.
type Buffer struct {
	// indices are on separate cache lines.
	write atomic.Uint64
	_     [56]byte
	read  atomic.Uint64
	_     [56]byte

	data       []float32
	mask       uint64
	capacity   uint64
	streamRate int
	logger     log.Logger

	producerRate atomic.Int64
	warned       atomic.Bool
	dropped      atomic.Uint64
	underflow    atomic.Uint64
}

// Option configures the buffer.
type Option func(*Buffer)

// WithLogger sets the logger used for rate mismatch diagnostics.
func WithLogger(l log.Logger) Option {
	return func(b *Buffer) {
		b.logger = l
	}
}

// New returns an empty buffer holding at least capacity frames, rounded
// up to a power of two. streamRate is only used in diagnostics.
func New(capacity, streamRate int, options ...Option) *Buffer {
	size := nextPow2(max(1, capacity))
	b := &Buffer{
		data:       make([]float32, size*channels),
		mask:       uint64(size - 1),
		capacity:   uint64(size),
		streamRate: streamRate,
	}
	for _, option := range options {
		option(b)
	}
	if b.logger == nil {
		b.logger = log.Component("ring", rtfx.NewUID().String())
	}
	return b
}

// Capacity returns capacity in frames.
func (b *Buffer) Capacity() int {
	return int(b.capacity)
}

// Available returns number of buffered frames.
func (b *Buffer) Available() int {
	r := b.read.Load()
	return int(min(b.capacity, b.write.Load()-r))
}

// Enqueue appends frames of interleaved stereo samples. Only the newest
// capacity frames of a larger batch are kept, and the oldest buffered
// frames are dropped to make room. Producer sample rate is compared to
// the first one seen and a mismatch is logged once, samples are never
// resampled.
func (b *Buffer) Enqueue(samples []float32, frames, sampleRate int) {
	if samples == nil || frames <= 0 {
		return
	}
	if frames > len(samples)/channels {
		frames = len(samples) / channels
		if frames == 0 {
			return
		}
	}
	b.checkRate(sampleRate)

	n := uint64(frames)
	if n > b.capacity {
		drop := n - b.capacity
		samples = samples[drop*channels:]
		n = b.capacity
		b.dropped.Add(drop)
	}

	w := b.write.Load()
	for {
		r := b.read.Load()
		free := b.capacity - min(b.capacity, w-r)
		if n <= free {
			break
		}
		// consumer may commit concurrently, read index only moves forward.
		need := n - free
		if b.read.CompareAndSwap(r, r+need) {
			b.dropped.Add(need)
			break
		}
	}

	pos := w & b.mask
	first := min(n, b.capacity-pos)
	copy(b.data[pos*channels:(pos+first)*channels], samples[:first*channels])
	if second := n - first; second > 0 {
		copy(b.data[:second*channels], samples[first*channels:n*channels])
	}
	b.write.Store(w + n)
}

func (b *Buffer) checkRate(sampleRate int) {
	if sampleRate <= 0 {
		return
	}
	rate := int64(sampleRate)
	if b.producerRate.CompareAndSwap(0, rate) {
		return
	}
	first := b.producerRate.Load()
	if first == rate || b.warned.Swap(true) {
		return
	}
	b.logger.Warnf("preview sample rate mismatch: producer %d Hz, first seen %d Hz, stream %d Hz, not resampled",
		sampleRate, first, b.streamRate)
}

// Dequeue copies up to frames into dst and zero-fills the rest of
// dst[:2*frames]. Returns number of frames taken from the buffer.
func (b *Buffer) Dequeue(dst []float32, frames int) int {
	if frames <= 0 {
		return 0
	}
	if frames > len(dst)/channels {
		frames = len(dst) / channels
	}
	want := uint64(frames)
	r := b.read.Load()
	w := b.write.Load()
	take := min(want, b.capacity, w-r)

	pos := r & b.mask
	first := min(take, b.capacity-pos)
	copy(dst[:first*channels], b.data[pos*channels:(pos+first)*channels])
	if second := take - first; second > 0 {
		copy(dst[first*channels:take*channels], b.data[:second*channels])
	}
	if take < want {
		clear(dst[take*channels : want*channels])
		b.underflow.Add(want - take)
	}
	// if producer dropped frames meanwhile, its newer index wins.
	b.read.CompareAndSwap(r, r+take)
	return int(take)
}

// Discard drops all buffered frames. It is safe to call from the producer
// goroutine while the consumer runs.
func (b *Buffer) Discard() {
	w := b.write.Load()
	for {
		r := b.read.Load()
		if r >= w {
			return
		}
		if b.read.CompareAndSwap(r, w) {
			b.dropped.Add(w - r)
			return
		}
	}
}

// Clear empties the buffer and resets rate diagnostics. It must not be
// called concurrently with Enqueue or Dequeue.
func (b *Buffer) Clear() {
	b.read.Store(0)
	b.write.Store(0)
	b.producerRate.Store(0)
	b.warned.Store(false)
}

// Stats returns counters snapshot.
func (b *Buffer) Stats() Stats {
	return Stats{
		Capacity:     int(b.capacity),
		Available:    b.Available(),
		Dropped:      b.dropped.Load(),
		Underflow:    b.underflow.Load(),
		RateMismatch: b.warned.Load(),
	}
}
