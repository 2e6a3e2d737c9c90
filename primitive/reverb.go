package primitive

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"
)

// Reverb room defaults.
const (
	DefaultRT60 = 1.6
	DefaultDamp = 0.35
)

// right channel is decorrelated from left by a longer pre-delay and a
// different modulation rate.
const (
	preDelayLeft  = 0.010
	preDelayRight = 0.017
	modRateLeft   = 0.10
	modRateRight  = 0.13
)

// Reverb renders pure wet signal for a stereo pair. Dry mixing is done
// by the caller.
type Reverb struct {
	left  *reverb.FDNReverb
	right *reverb.FDNReverb
}

// ReverbOption configures reverb room.
type ReverbOption func(*reverbConfig)

type reverbConfig struct {
	rt60 float64
	damp float64
}

// WithRT60 sets decay time in seconds.
func WithRT60(seconds float64) ReverbOption {
	return func(c *reverbConfig) {
		c.rt60 = seconds
	}
}

// WithDamp sets high frequency damping in [0, 1).
func WithDamp(damp float64) ReverbOption {
	return func(c *reverbConfig) {
		c.damp = damp
	}
}

// NewReverb returns a stereo wet-only reverb for sample rate.
func NewReverb(sampleRate int, options ...ReverbOption) (*Reverb, error) {
	cfg := reverbConfig{
		rt60: DefaultRT60,
		damp: DefaultDamp,
	}
	for _, option := range options {
		option(&cfg)
	}
	left, err := newFDN(sampleRate, cfg, preDelayLeft, modRateLeft)
	if err != nil {
		return nil, fmt.Errorf("left reverb: %w", err)
	}
	right, err := newFDN(sampleRate, cfg, preDelayRight, modRateRight)
	if err != nil {
		return nil, fmt.Errorf("right reverb: %w", err)
	}
	return &Reverb{left: left, right: right}, nil
}

func newFDN(sampleRate int, cfg reverbConfig, preDelay, modRate float64) (*reverb.FDNReverb, error) {
	r, err := reverb.NewFDNReverb(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	setters := []func() error{
		func() error { return r.SetWet(1) },
		func() error { return r.SetDry(0) },
		func() error { return r.SetRT60(cfg.rt60) },
		func() error { return r.SetDamp(cfg.damp) },
		func() error { return r.SetPreDelay(preDelay) },
		func() error { return r.SetModRate(modRate) },
	}
	for _, set := range setters {
		if err := set(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Process replaces both channels with their wet render.
func (r *Reverb) Process(left, right []float64) {
	r.left.ProcessInPlace(left)
	r.right.ProcessInPlace(right)
}

// Reset clears reverb tails.
func (r *Reverb) Reset() {
	r.left.Reset()
	r.right.Reset()
}
