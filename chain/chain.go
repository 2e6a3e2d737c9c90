// Package chain implements the real-time stereo effect chain.
//
// Stages run in fixed order: equalizer, compressor, spatializer, reverb.
// Parameters are set from a control goroutine with atomic stores and are
// picked up by the next Process call. Process is meant to be called from
// a single real-time goroutine and doesn't allocate once scratch buffers
// have grown to the largest frame count seen.
package chain

import (
	"fmt"
	"sync/atomic"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/signal"
)

// Equalizer layout.
const (
	NumBands    = 5
	BandOctaves = 1.0
)

// DefaultWet is the initial reverb mix.
const DefaultWet = 0.25

const (
	numSources    = 2
	initialFrames = 1024
)

// BandCenters are equalizer band center frequencies in Hz.
var BandCenters = [NumBands]float64{60, 250, 1000, 4000, 10000}

// Chain is a stereo effect chain bound to one sample rate.
type Chain struct {
	rtfx.UID
	logger     log.Logger
	primitives Primitives
	sampleRate atomic.Int64

	gains [NumBands]param
	bands [NumBands]Band

	comp compressor

	reverbOn  atomic.Bool
	reverbWet param
	reverb    Reverb

	spatial      atomic.Bool
	headTracking atomic.Bool
	pose         pose
	sources      [numSources]Source

	capacity          atomic.Int64
	left, right       []float64
	outLeft, outRight []float64
	wetLeft, wetRight []float64
}

// Option provides a way to set chain dependencies.
type Option func(*Chain)

// WithPrimitives sets the primitive factory.
func WithPrimitives(p Primitives) Option {
	return func(c *Chain) {
		c.primitives = p
	}
}

// WithLogger sets the chain logger.
func WithLogger(l log.Logger) Option {
	return func(c *Chain) {
		c.logger = l
	}
}

// New returns a chain configured for sample rate. Non-positive rate
// falls back to rtfx.DefaultSampleRate.
func New(sampleRate int, options ...Option) (*Chain, error) {
	c := &Chain{
		UID:        rtfx.NewUID(),
		primitives: dsp{},
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.Component("chain", c.UID.String())
	}
	c.comp.set(DefaultThresholdDB, DefaultRatio, DefaultAttackMs, DefaultReleaseMs, DefaultMakeupDB)
	c.reverbWet.Store(DefaultWet)
	c.pose.distance.Store(DefaultDistance)
	c.grow(initialFrames)
	if err := c.Configure(rtfx.SampleRate(sampleRate)); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure rebuilds all stage primitives for sample rate. Current
// stages are kept if any primitive fails to build. It must not be called
// concurrently with Process, a running chain is replaced with a new one
// instead. Non-positive rate is ignored.
func (c *Chain) Configure(sampleRate int) error {
	if sampleRate <= 0 {
		return nil
	}
	var (
		bands   [NumBands]Band
		sources [numSources]Source
		err     error
	)
	for i := range bands {
		if bands[i], err = c.primitives.NewBand(BandCenters[i], BandOctaves, sampleRate); err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
		bands[i].SetGain(c.gains[i].Load())
	}
	for i := range sources {
		if sources[i], err = c.primitives.NewSource(sampleRate); err != nil {
			return fmt.Errorf("spatial source %d: %w", i, err)
		}
	}
	reverb, err := c.primitives.NewReverb(sampleRate)
	if err != nil {
		return fmt.Errorf("reverb: %w", err)
	}
	c.bands = bands
	c.sources = sources
	c.reverb = reverb
	c.sampleRate.Store(int64(sampleRate))
	c.logger.Debugf("configured for %d Hz", sampleRate)
	return nil
}

// Process applies the chain to interleaved stereo buf in place. Calls
// with nil buffer, non-positive frames or short buffer are ignored. A
// positive sampleRate different from the configured one becomes the
// authoritative rate, primitives are not rebuilt.
func (c *Chain) Process(buf []float32, frames, sampleRate int) {
	if buf == nil || frames <= 0 || len(buf) < frames*rtfx.NumChannels {
		return
	}
	rate := int(c.sampleRate.Load())
	if sampleRate > 0 && sampleRate != rate {
		rate = sampleRate
		c.sampleRate.Store(int64(rate))
	}
	c.grow(frames)

	left, right := c.left[:frames], c.right[:frames]
	signal.Deinterleave(buf, frames, left, right)
	c.equalize(left, right)
	c.comp.process(left, right, rate)
	left, right = c.spatialize(left, right)
	c.reverberate(left, right)
	signal.Interleave(left, right, frames, buf)
}

// grow makes sure scratch buffers hold frames. Capacity never shrinks.
func (c *Chain) grow(frames int) {
	if int64(frames) <= c.capacity.Load() {
		return
	}
	c.left = make([]float64, frames)
	c.right = make([]float64, frames)
	c.outLeft = make([]float64, frames)
	c.outRight = make([]float64, frames)
	c.wetLeft = make([]float64, frames)
	c.wetRight = make([]float64, frames)
	c.capacity.Store(int64(frames))
}

func (c *Chain) equalize(left, right []float64) {
	for i, b := range c.bands {
		if b == nil {
			continue
		}
		b.SetGain(c.gains[i].Load())
		b.Process(left, right)
	}
}

func (c *Chain) reverberate(left, right []float64) {
	if !c.reverbOn.Load() || c.reverb == nil {
		return
	}
	wet := clamp(c.reverbWet.Load(), 0, 1)
	dry := 1 - wet
	n := len(left)
	wetLeft, wetRight := c.wetLeft[:n], c.wetRight[:n]
	copy(wetLeft, left)
	copy(wetRight, right)
	c.reverb.Process(wetLeft, wetRight)
	for i := range left {
		left[i] = dry*left[i] + wet*wetLeft[i]
		right[i] = dry*right[i] + wet*wetRight[i]
	}
}

// SampleRate returns the authoritative sample rate.
func (c *Chain) SampleRate() int {
	return int(c.sampleRate.Load())
}

// ScratchCapacity returns scratch buffer capacity in frames.
func (c *Chain) ScratchCapacity() int {
	return int(c.capacity.Load())
}

// CompressorEnvelope returns the envelope value left by the latest
// Process call. It must be called from the processing goroutine.
func (c *Chain) CompressorEnvelope() float64 {
	return c.comp.env
}
