package ring_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/ring"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// frames returns n interleaved frames numbered from start.
func frames(start, n int) []float32 {
	buf := make([]float32, n*2)
	for i := 0; i < n; i++ {
		buf[2*i] = float32(start + i)
		buf[2*i+1] = -float32(start + i)
	}
	return buf
}

func TestCapacity(t *testing.T) {
	tests := []struct {
		framesPerCallback int
		expected          int
	}{
		{framesPerCallback: 0, expected: 2048},
		{framesPerCallback: -5, expected: 2048},
		{framesPerCallback: 16, expected: 2048},
		{framesPerCallback: 32, expected: 2048},
		{framesPerCallback: 33, expected: 4096},
		{framesPerCallback: 192, expected: 16384},
		{framesPerCallback: 256, expected: 16384},
		{framesPerCallback: 480, expected: 32768},
		{framesPerCallback: 4096, expected: 32768},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, ring.Capacity(test.framesPerCallback), "frames per callback: %d", test.framesPerCallback)
	}
	assert.Equal(t, 8, ring.New(5, 48000).Capacity())
}

func TestFIFO(t *testing.T) {
	b := ring.New(16, 48000, ring.WithLogger(log.Discard()))
	b.Enqueue(frames(0, 5), 5, 48000)
	b.Enqueue(frames(5, 7), 7, 48000)
	assert.Equal(t, 12, b.Available())

	dst := make([]float32, 2*12)
	assert.Equal(t, 12, b.Dequeue(dst, 12))
	assert.Equal(t, frames(0, 12), dst)
	assert.Equal(t, 0, b.Available())
	assert.Equal(t, uint64(0), b.Stats().Dropped)
}

func TestWrapAround(t *testing.T) {
	b := ring.New(8, 48000, ring.WithLogger(log.Discard()))
	dst := make([]float32, 2*6)
	next := 0
	for round := 0; round < 10; round++ {
		b.Enqueue(frames(next, 6), 6, 48000)
		assert.Equal(t, 6, b.Dequeue(dst, 6))
		assert.Equal(t, frames(next, 6), dst, "round %d", round)
		next += 6
	}
}

func TestOverflowKeepsNewest(t *testing.T) {
	tests := []struct {
		description string
		batches     [][2]int // start, count
		expected    []float32
		dropped     uint64
	}{
		{
			description: "batch larger than capacity",
			batches:     [][2]int{{0, 20}},
			expected:    frames(12, 8),
			dropped:     12,
		},
		{
			description: "buffered frames are dropped",
			batches:     [][2]int{{0, 6}, {6, 5}},
			expected:    frames(3, 8),
			dropped:     3,
		},
		{
			description: "full buffer and oversized batch",
			batches:     [][2]int{{0, 8}, {100, 9}},
			expected:    frames(101, 8),
			dropped:     9,
		},
	}
	for _, test := range tests {
		b := ring.New(8, 48000, ring.WithLogger(log.Discard()))
		for _, batch := range test.batches {
			b.Enqueue(frames(batch[0], batch[1]), batch[1], 48000)
		}
		assert.Equal(t, 8, b.Available(), test.description)
		dst := make([]float32, 16)
		assert.Equal(t, 8, b.Dequeue(dst, 8), test.description)
		assert.Equal(t, test.expected, dst, test.description)
		assert.Equal(t, test.dropped, b.Stats().Dropped, test.description)
	}
}

func TestUnderflowZeroFills(t *testing.T) {
	b := ring.New(8, 48000, ring.WithLogger(log.Discard()))
	b.Enqueue(frames(1, 3), 3, 48000)
	dst := make([]float32, 2*6)
	for i := range dst {
		dst[i] = 42
	}
	assert.Equal(t, 3, b.Dequeue(dst, 6))
	expected := append(frames(1, 3), make([]float32, 6)...)
	assert.Equal(t, expected, dst)
	assert.Equal(t, uint64(3), b.Stats().Underflow)

	// empty buffer is all silence.
	assert.Equal(t, 0, b.Dequeue(dst, 6))
	assert.Equal(t, make([]float32, 12), dst)
}

func TestInvalidCalls(t *testing.T) {
	b := ring.New(8, 48000, ring.WithLogger(log.Discard()))
	b.Enqueue(nil, 4, 48000)
	b.Enqueue(frames(0, 4), 0, 48000)
	b.Enqueue(frames(0, 4), -1, 48000)
	assert.Equal(t, 0, b.Available())
	// frame count is limited by samples length.
	b.Enqueue(frames(0, 2), 10, 48000)
	assert.Equal(t, 2, b.Available())
	assert.Equal(t, 0, b.Dequeue(make([]float32, 4), 0))
	assert.Equal(t, 1, b.Dequeue(make([]float32, 3), 4))
}

func TestDiscard(t *testing.T) {
	b := ring.New(8, 48000, ring.WithLogger(log.Discard()))
	b.Discard()
	assert.Equal(t, uint64(0), b.Stats().Dropped)

	b.Enqueue(frames(0, 5), 5, 48000)
	b.Discard()
	assert.Equal(t, 0, b.Available())
	assert.Equal(t, uint64(5), b.Stats().Dropped)

	// buffer keeps working after discard.
	b.Enqueue(frames(10, 3), 3, 48000)
	dst := make([]float32, 6)
	assert.Equal(t, 3, b.Dequeue(dst, 3))
	assert.Equal(t, frames(10, 3), dst)
}

func TestRateMismatchLoggedOnce(t *testing.T) {
	var out bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&out)
	b := ring.New(64, 48000, ring.WithLogger(logger))

	b.Enqueue(frames(0, 4), 4, 44100)
	b.Enqueue(frames(0, 4), 4, 44100)
	assert.False(t, b.Stats().RateMismatch)
	assert.Empty(t, out.String())

	b.Enqueue(frames(0, 4), 4, 48000)
	b.Enqueue(frames(0, 4), 4, 22050)
	assert.True(t, b.Stats().RateMismatch)
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("mismatch")))
	// mismatched frames are still queued.
	assert.Equal(t, 16, b.Available())

	b.Clear()
	assert.Equal(t, 0, b.Available())
	assert.False(t, b.Stats().RateMismatch)
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 20000
	b := ring.New(256, 48000, ring.WithLogger(log.Discard()))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for sent := 0; sent < total; {
			n := min(37, total-sent)
			// producer never overflows so every frame arrives.
			if b.Capacity()-b.Available() < n {
				continue
			}
			b.Enqueue(frames(sent, n), n, 48000)
			sent += n
		}
	}()

	dst := make([]float32, 2*64)
	received := 0
	for received < total {
		n := b.Dequeue(dst, 64)
		for i := 0; i < n; i++ {
			if !assert.Equal(t, float32(received+i), dst[2*i]) {
				return
			}
		}
		received += n
	}
	wg.Wait()
	assert.Equal(t, uint64(0), b.Stats().Dropped)
}
