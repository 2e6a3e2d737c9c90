package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"

	"github.com/pipelined/rtfx/signal"
)

func TestInterleave(t *testing.T) {
	src := []float32{1, -1, 2, -2, 3, -3}
	left := make([]float64, 3)
	right := make([]float64, 3)
	signal.Deinterleave(src, 3, left, right)
	assert.Equal(t, []float64{1, 2, 3}, left)
	assert.Equal(t, []float64{-1, -2, -3}, right)

	dst := make([]float32, 6)
	signal.Interleave(left, right, 3, dst)
	assert.Equal(t, src, dst)
}

func TestToStereo(t *testing.T) {
	tests := []struct {
		description string
		src         []float32
		numChannels int
		frames      int
		expected    []float32
	}{
		{
			description: "mono is duplicated",
			src:         []float32{1, 2},
			numChannels: 1,
			frames:      2,
			expected:    []float32{1, 1, 2, 2},
		},
		{
			description: "stereo is copied",
			src:         []float32{1, 2, 3, 4},
			numChannels: 2,
			frames:      2,
			expected:    []float32{1, 2, 3, 4},
		},
		{
			description: "extra channels are dropped",
			src:         []float32{1, 2, 9, 3, 4, 9},
			numChannels: 3,
			frames:      2,
			expected:    []float32{1, 2, 3, 4},
		},
	}
	for _, test := range tests {
		dst := make([]float32, 2*test.frames)
		signal.ToStereo(test.src, test.numChannels, test.frames, dst)
		assert.Equal(t, test.expected, dst, test.description)
	}
}

func TestIntFloatConversion(t *testing.T) {
	tests := []struct {
		description string
		ints        []int
		bitDepth    signal.BitDepth
		expected    []float32
	}{
		{
			description: "16 bit full scale",
			ints:        []int{-32768, 0, 16384},
			bitDepth:    signal.BitDepth16,
			expected:    []float32{-1, 0, 0.5},
		},
		{
			description: "24 bit half scale",
			ints:        []int{1 << 22},
			bitDepth:    signal.BitDepth24,
			expected:    []float32{0.5},
		},
	}
	for _, test := range tests {
		dst := make([]float32, len(test.ints))
		n := signal.IntToFloat(test.ints, test.bitDepth, dst)
		assert.Equal(t, len(test.ints), n, test.description)
		assert.Equal(t, test.expected, dst, test.description)
	}

	ints := make([]int, 4)
	signal.FloatToInt([]float32{2, -2, 0.5, 0}, signal.BitDepth16, ints)
	assert.Equal(t, []int{32767, -32768, 16384, 0}, ints)
}

func TestFromIntBuffer(t *testing.T) {
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           []int{16384, -16384},
		SourceBitDepth: 16,
	}
	dst := make([]float32, 2)
	assert.Equal(t, 2, signal.FromIntBuffer(ib, dst))
	assert.Equal(t, []float32{0.5, -0.5}, dst)
	assert.Equal(t, 0, signal.FromIntBuffer(nil, dst))
}

func TestDecibels(t *testing.T) {
	assert.InDelta(t, 1.0, signal.DBToLinear(0), 1e-12)
	assert.InDelta(t, 1.9953, signal.DBToLinear(6), 1e-4)
	assert.InDelta(t, 6.0, signal.LinearToDB(signal.DBToLinear(6)), 1e-9)
	assert.True(t, math.IsInf(signal.LinearToDB(0), -1))
}

func TestDurations(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(48000, 48000))
	assert.Equal(t, time.Duration(0), signal.DurationOf(0, 100))
	assert.Equal(t, 480, signal.FramesOf(48000, 10*time.Millisecond))
}
