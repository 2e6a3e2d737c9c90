package rtfx

import (
	"github.com/rs/xid"
)

const (
	// NumChannels is the only channel layout processed by the chain.
	NumChannels = 2
	// DefaultSampleRate is used whenever a caller passes a non-positive rate.
	DefaultSampleRate = 48000
)

// Processor transforms interleaved stereo samples in place. Implementations
// are called from the real-time audio thread and must not block or allocate
// in the steady state.
type Processor interface {
	Process(buf []float32, frames, sampleRate int)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(buf []float32, frames, sampleRate int)

// Process calls f.
func (f ProcessorFunc) Process(buf []float32, frames, sampleRate int) {
	f(buf, frames, sampleRate)
}

// UID is a unique identifier of a component instance. It's used to
// correlate log records.
type UID string

// NewUID returns new UID value.
func NewUID() UID {
	return UID(xid.New().String())
}

// String returns uid as string.
func (id UID) String() string {
	return string(id)
}

// SampleRate returns rate if it's positive and DefaultSampleRate otherwise.
func SampleRate(rate int) int {
	if rate <= 0 {
		return DefaultSampleRate
	}
	return rate
}
