// Package itd approximates inter-aural time difference with a short
// fractional delay line.
package itd

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/delay"
)

const (
	// MaxSeconds is the largest inter-aural delay for an average head.
	MaxSeconds = 0.0006

	headRadius   = 0.0875 // meters
	speedOfSound = 343.0  // meters per second

	// base latency shared by both ears. It keeps interpolation taps
	// inside written history.
	base = 1
	// guard keeps the hermite kernel's 4 taps inside the buffer.
	guard = 4
)

// Line is a circular sample buffer that returns input delayed by a
// fractional number of samples. It's not safe for concurrent use.
type Line struct {
	line     *delay.Line
	maxDelay int
}

// MaxDelay returns maximum inter-aural delay in samples for sample rate.
// It's never less than one sample.
func MaxDelay(sampleRate int) int {
	return max(1, int(math.Ceil(float64(sampleRate)*MaxSeconds)))
}

// New returns a line able to hold MaxDelay(sampleRate) samples of delay.
func New(sampleRate int) (*Line, error) {
	maxDelay := MaxDelay(sampleRate)
	l, err := delay.New(maxDelay + base + guard)
	if err != nil {
		return nil, err
	}
	return &Line{
		line:     l,
		maxDelay: maxDelay,
	}, nil
}

// MaxDelay returns maximum delay of the line in samples.
func (l *Line) MaxDelay() int {
	return l.maxDelay
}

// Write pushes one sample into the line.
func (l *Line) Write(sample float64) {
	l.line.Write(sample)
}

// Read returns the sample written d samples before the latest one,
// plus the fixed one-sample base latency. Delay is clamped to
// [0, MaxDelay].
func (l *Line) Read(d float64) float64 {
	if d < 0 {
		d = 0
	} else if d > float64(l.maxDelay) {
		d = float64(l.maxDelay)
	}
	return l.line.ReadFractional(d + base + 1)
}

// Reset clears the line history.
func (l *Line) Reset() {
	l.line.Reset()
}

// Delays returns per-ear delays in samples for a source at azimuth
// degrees, where positive azimuth is to the right of the listener. The
// ear facing away from the source gets the Woodworth approximation of
// the path difference, the near ear gets zero.
func Delays(azimuth float64, sampleRate int) (left, right float64) {
	theta := azimuth * math.Pi / 180
	// fold rear hemisphere onto front, itd is symmetric front to back.
	s := math.Sin(theta)
	lateral := math.Asin(math.Abs(s))
	seconds := headRadius / speedOfSound * (lateral + math.Sin(lateral))
	if seconds > MaxSeconds {
		seconds = MaxSeconds
	}
	samples := seconds * float64(sampleRate)
	if s >= 0 {
		return samples, 0
	}
	return 0, samples
}
