// Package primitive wraps filter, reverb and spatial rendering primitives
// into stereo stage adapters. Every adapter is built for one sample rate
// and must be recreated when the rate changes. Processing methods don't
// allocate and are safe to call from the real-time thread.
package primitive

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// unity is pass-through biquad. Designers return zero coefficients
// for frequencies they can't realize, it's replaced with unity.
var unity = biquad.Coefficients{B0: 1}

// Band is a stereo parametric peaking filter.
type Band struct {
	center     float64
	q          float64
	sampleRate float64
	gain       float64
	left       *biquad.Section
	right      *biquad.Section
}

// OctavesToQ converts bandwidth in octaves to filter quality factor.
func OctavesToQ(octaves float64) float64 {
	if octaves <= 0 {
		octaves = 1
	}
	p := math.Pow(2, octaves)
	return math.Sqrt(p) / (p - 1)
}

// NewBand returns a flat band at center frequency with bandwidth in
// octaves.
func NewBand(center, octaves float64, sampleRate int) *Band {
	b := &Band{
		center:     center,
		q:          OctavesToQ(octaves),
		sampleRate: float64(sampleRate),
		left:       biquad.NewSection(unity),
		right:      biquad.NewSection(unity),
	}
	b.update()
	return b
}

// Center returns center frequency in Hz.
func (b *Band) Center() float64 {
	return b.center
}

// Gain returns the gain in dB.
func (b *Band) Gain() float64 {
	return b.gain
}

// SetGain recomputes coefficients for gain in dB. Filter state is kept
// so the change is applied without a discontinuity in history.
func (b *Band) SetGain(db float64) {
	if db == b.gain {
		return
	}
	b.gain = db
	b.update()
}

func (b *Band) update() {
	c := design.Peak(b.center, b.gain, b.q, b.sampleRate)
	if c == (biquad.Coefficients{}) {
		c = unity
	}
	b.left.Coefficients = c
	b.right.Coefficients = c
}

// Process filters both channels in place.
func (b *Band) Process(left, right []float64) {
	b.left.ProcessBlock(left)
	b.right.ProcessBlock(right)
}

// Reset clears filter history.
func (b *Band) Reset() {
	b.left.Reset()
	b.right.Reset()
}
