package engine

import (
	"math"
	"sync/atomic"
)

// Test tone defaults and limits.
const (
	DefaultToneFrequency = 220.0
	DefaultToneLevel     = 0.12

	MinToneFrequency = 20.0
	MaxToneFrequency = 20000.0

	twoPi = 2 * math.Pi
)

// tone is a sine generator. Parameters are set from any goroutine, phase
// is owned by the callback and persists across callbacks.
type tone struct {
	enabled   atomic.Bool
	frequency atomic.Uint64
	level     atomic.Uint64

	phase float64
}

func newTone() *tone {
	t := &tone{}
	t.setFrequency(DefaultToneFrequency)
	t.setLevel(DefaultToneLevel)
	return t
}

func (t *tone) setFrequency(hz float64) {
	if math.IsNaN(hz) {
		return
	}
	hz = math.Min(MaxToneFrequency, math.Max(MinToneFrequency, hz))
	t.frequency.Store(math.Float64bits(hz))
}

func (t *tone) setLevel(level float64) {
	if math.IsNaN(level) {
		return
	}
	level = math.Min(1, math.Max(0, level))
	t.level.Store(math.Float64bits(level))
}

func (t *tone) settings() (enabled bool, hz, level float64) {
	return t.enabled.Load(),
		math.Float64frombits(t.frequency.Load()),
		math.Float64frombits(t.level.Load())
}

// render writes the same sine into both channels of frames.
func (t *tone) render(out []float32, frames, sampleRate int) {
	increment := twoPi * math.Float64frombits(t.frequency.Load()) / float64(sampleRate)
	level := math.Float64frombits(t.level.Load())
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(t.phase) * level)
		out[2*i] = v
		out[2*i+1] = v
		t.phase += increment
		if t.phase >= twoPi {
			t.phase = math.Mod(t.phase, twoPi)
		}
	}
}
