// Package adapter plugs the effect chain into a media pipeline that
// passes interleaved stereo PCM as little-endian byte buffers.
package adapter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/audio"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/signal"
)

// ErrUnhandledFormat is returned by Configure for formats other than
// stereo PCM16 or float32.
var ErrUnhandledFormat = errors.New("unhandled audio format")

// Encoding of PCM samples.
type Encoding int

// Supported encodings.
const (
	EncodingInvalid Encoding = iota
	EncodingPCM16
	EncodingFloat
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM16:
		return "pcm16"
	case EncodingFloat:
		return "float32"
	}
	return "invalid"
}

func (e Encoding) bytesPerSample() int {
	switch e {
	case EncodingPCM16:
		return 2
	case EncodingFloat:
		return 4
	}
	return 0
}

// Format describes the PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// BufferProcessor processes interleaved stereo float samples in place.
type BufferProcessor interface {
	ProcessBuffer(buf []float32, frames, sampleRate int)
}

// Previewer accepts processed frames for preview playback.
type Previewer interface {
	EnqueuePreviewPCM(samples []float32, frames, sampleRate int)
}

// Processor converts byte buffers to float, processes them and converts
// them back to the input encoding. Output of one QueueInput call is held
// until it's taken with Output, no input is accepted meanwhile. Processor
// isn't safe for concurrent use.
type Processor struct {
	processor  BufferProcessor
	sampleRate func() int
	preview    Previewer

	format     Format
	configured bool
	ended      bool

	floats []float32
	ints   *audio.IntBuffer
	buf    []byte
	output []byte
}

// Option configures the processor.
type Option func(*Processor)

// WithSampleRate sets a provider of the processing rate. Non-positive
// provided rate falls back to the configured format rate.
func WithSampleRate(fn func() int) Option {
	return func(p *Processor) {
		p.sampleRate = fn
	}
}

// WithPreview tees processed frames into previewer.
func WithPreview(previewer Previewer) Option {
	return func(p *Processor) {
		p.preview = previewer
	}
}

// New returns unconfigured processor.
func New(processor BufferProcessor, options ...Option) *Processor {
	p := &Processor{
		processor: processor,
		ints: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: rtfx.NumChannels},
			SourceBitDepth: int(signal.BitDepth16),
		},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Configure sets input format. Output format is the same as input.
func (p *Processor) Configure(f Format) (Format, error) {
	if f.Channels != rtfx.NumChannels || f.Encoding.bytesPerSample() == 0 {
		return Format{}, fmt.Errorf("%w: %d channels %v", ErrUnhandledFormat, f.Channels, f.Encoding)
	}
	p.format = f
	p.configured = true
	p.ints.Format.SampleRate = f.SampleRate
	return f, nil
}

// IsActive reports if processor was configured.
func (p *Processor) IsActive() bool {
	return p.configured
}

// QueueInput processes whole frames of in and returns number of consumed
// bytes. Nothing is consumed while previous output is pending.
func (p *Processor) QueueInput(in []byte) int {
	if !p.configured || len(in) == 0 || len(p.output) > 0 {
		return 0
	}
	frameSize := p.format.Channels * p.format.Encoding.bytesPerSample()
	frames := len(in) / frameSize
	if frames == 0 {
		return len(in)
	}
	samples := frames * p.format.Channels
	size := frames * frameSize
	p.grow(samples, size)
	floats := p.floats[:samples]

	switch p.format.Encoding {
	case EncodingFloat:
		for i := range floats {
			floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(in[4*i:]))
		}
	case EncodingPCM16:
		ints := p.ints.Data[:samples]
		for i := range ints {
			ints[i] = int(int16(binary.LittleEndian.Uint16(in[2*i:])))
		}
		// conversion stops at len(floats).
		signal.FromIntBuffer(p.ints, floats)
	}

	rate := p.format.SampleRate
	if p.sampleRate != nil {
		if provided := p.sampleRate(); provided > 0 {
			rate = provided
		}
	}
	if p.processor != nil {
		p.processor.ProcessBuffer(floats, frames, rate)
	}
	if p.preview != nil {
		p.preview.EnqueuePreviewPCM(floats, frames, rate)
	}

	out := p.buf[:size]
	switch p.format.Encoding {
	case EncodingFloat:
		for i, v := range floats {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
	case EncodingPCM16:
		ints := p.ints.Data[:samples]
		signal.FloatToInt(floats, signal.BitDepth16, ints)
		for i, v := range ints {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
		}
	}
	p.output = out
	return size
}

func (p *Processor) grow(samples, size int) {
	if cap(p.floats) < samples {
		p.floats = make([]float32, samples)
	}
	if cap(p.ints.Data) < samples {
		p.ints.Data = make([]int, samples)
	}
	if cap(p.buf) < size {
		p.buf = make([]byte, size)
	}
	p.floats = p.floats[:cap(p.floats)]
	p.ints.Data = p.ints.Data[:cap(p.ints.Data)]
	p.buf = p.buf[:cap(p.buf)]
}

// Output returns pending output and releases it. The returned slice is
// valid until the next QueueInput call.
func (p *Processor) Output() []byte {
	out := p.output
	p.output = nil
	return out
}

// QueueEndOfStream marks that no more input follows.
func (p *Processor) QueueEndOfStream() {
	p.ended = true
}

// IsEnded reports if end of stream was queued and output is drained.
func (p *Processor) IsEnded() bool {
	return p.ended && len(p.output) == 0
}

// Flush drops pending output and clears end of stream.
func (p *Processor) Flush() {
	p.output = nil
	p.ended = false
}

// Reset flushes and forgets the configured format.
func (p *Processor) Reset() {
	p.Flush()
	p.format = Format{}
	p.configured = false
	p.floats, p.buf = nil, nil
	p.ints.Data = nil
}
