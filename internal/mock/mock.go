// Package mock provides mocks of real-time components for tests.
package mock

import (
	"math"
	"sync/atomic"
)

// Processor mocks rtfx.Processor. It multiplies samples by Gain and
// counts calls and frames. Zero Gain leaves samples untouched.
type Processor struct {
	counter
	Gain       float32
	sampleRate atomic.Int64
}

// Process implements rtfx.Processor.
func (m *Processor) Process(buf []float32, frames, sampleRate int) {
	if m.Gain != 0 {
		for i := range buf[:frames*2] {
			buf[i] *= m.Gain
		}
	}
	m.sampleRate.Store(int64(sampleRate))
	m.advance(frames)
}

// SampleRate returns the rate of the latest call.
func (m *Processor) SampleRate() int {
	return int(m.sampleRate.Load())
}

// Enqueuer mocks a preview queue. It keeps copies of enqueued frames.
type Enqueuer struct {
	counter
	Samples    []float32
	SampleRate int
}

// EnqueuePreviewPCM appends frames.
func (m *Enqueuer) EnqueuePreviewPCM(samples []float32, frames, sampleRate int) {
	m.Samples = append(m.Samples, samples[:frames*2]...)
	m.SampleRate = sampleRate
	m.advance(frames)
}

// Peak returns the largest absolute sample value.
func (m *Enqueuer) Peak() float64 {
	var peak float64
	for _, v := range m.Samples {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	return peak
}

// counter counts calls and frames.
type counter struct {
	calls  atomic.Int64
	frames atomic.Int64
}

// advance counter's metrics.
func (c *counter) advance(frames int) {
	c.calls.Add(1)
	c.frames.Add(int64(frames))
}

// Count returns calls and frames metrics.
func (c *counter) Count() (int, int) {
	return int(c.calls.Load()), int(c.frames.Load())
}
