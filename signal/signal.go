// Package signal provides helpers to manipulate digital signals. It allows to:
//	- convert interleaved stereo float32 data to non-interleaved float64 and back
//	- convert int samples of a known bit depth to float and back
//	- convert between decibels and linear gain
package signal

import (
	"math"
	"time"

	"github.com/go-audio/audio"
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// maxFloat is the largest float that still maps into int range after
// scaling, 32767/32768 for 16 bits.
const maxFloat = 0.9999695

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// scale is full-scale magnitude for the bit depth, 2^(depth-1).
func (bitDepth BitDepth) scale() float64 {
	switch bitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
		return float64(int64(1) << uint(bitDepth-1))
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// FramesOf returns number of frames that fit into d at sample rate.
func FramesOf(sampleRate int, d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Deinterleave splits interleaved stereo buffer into left and right
// channels. Destination slices must hold at least frames samples.
func Deinterleave(src []float32, frames int, left, right []float64) {
	for i := 0; i < frames; i++ {
		left[i] = float64(src[2*i])
		right[i] = float64(src[2*i+1])
	}
}

// Interleave merges left and right channels into interleaved stereo
// buffer. Destination must hold at least 2*frames samples.
func Interleave(left, right []float64, frames int, dst []float32) {
	for i := 0; i < frames; i++ {
		dst[2*i] = float32(left[i])
		dst[2*i+1] = float32(right[i])
	}
}

// ToStereo converts interleaved buffer with numChannels channels into
// interleaved stereo. Mono is duplicated, extra channels are dropped.
func ToStereo(src []float32, numChannels, frames int, dst []float32) {
	switch {
	case numChannels <= 0:
		return
	case numChannels == 1:
		for i := 0; i < frames; i++ {
			dst[2*i] = src[i]
			dst[2*i+1] = src[i]
		}
	default:
		for i := 0; i < frames; i++ {
			dst[2*i] = src[i*numChannels]
			dst[2*i+1] = src[i*numChannels+1]
		}
	}
}

// DBToLinear converts decibels to linear gain.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear gain to decibels. Non-positive values map to
// negative infinity.
func LinearToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

// IntToFloat converts int samples of provided bit depth into floats in
// [-1, 1). Returns number of converted samples.
func IntToFloat(ints []int, bitDepth BitDepth, dst []float32) int {
	n := min(len(ints), len(dst))
	scale := bitDepth.scale()
	for i := 0; i < n; i++ {
		dst[i] = float32(float64(ints[i]) / scale)
	}
	return n
}

// FloatToInt converts floats into int samples of provided bit depth.
// Values are clamped to [-1, 0.9999695] before scaling. Returns number of
// converted samples.
func FloatToInt(floats []float32, bitDepth BitDepth, dst []int) int {
	n := min(len(floats), len(dst))
	scale := bitDepth.scale()
	for i := 0; i < n; i++ {
		v := float64(floats[i])
		if math.IsNaN(v) {
			v = 0
		} else if v > maxFloat {
			v = maxFloat
		} else if v < -1 {
			v = -1
		}
		dst[i] = int(math.Round(v * scale))
	}
	return n
}

// FromIntBuffer converts decoded pcm buffer into interleaved floats using
// its source bit depth.
func FromIntBuffer(ib *audio.IntBuffer, dst []float32) int {
	if ib == nil {
		return 0
	}
	return IntToFloat(ib.Data, BitDepth(ib.SourceBitDepth), dst)
}
