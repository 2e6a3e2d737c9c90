package primitive_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/spectrum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtfx/primitive"
)

const sampleRate = 48000

func sine(freq, amplitude float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return s
}

func noise(n int) []float64 {
	r := rand.New(rand.NewSource(1))
	s := make([]float64, n)
	for i := range s {
		s[i] = r.Float64()*2 - 1
	}
	return s
}

func magnitude(t *testing.T, freq float64, s []float64) float64 {
	g, err := spectrum.NewGoertzel(freq, sampleRate)
	require.NoError(t, err)
	g.ProcessBlock(s)
	return g.Magnitude()
}

func energy(s []float64) float64 {
	var e float64
	for _, v := range s {
		e += v * v
	}
	return e
}

func TestOctavesToQ(t *testing.T) {
	assert.InDelta(t, math.Sqrt2, primitive.OctavesToQ(1), 1e-12)
	assert.InDelta(t, math.Sqrt2, primitive.OctavesToQ(0), 1e-12)
	assert.InDelta(t, 2.871, primitive.OctavesToQ(0.5), 1e-3)
}

func TestBand(t *testing.T) {
	tests := []struct {
		description string
		center      float64
		gain        float64
		freq        float64
		expected    float64
		delta       float64
	}{
		{
			description: "flat band is unity",
			center:      1000,
			gain:        0,
			freq:        1000,
			expected:    1,
			delta:       1e-6,
		},
		{
			description: "boost at center",
			center:      1000,
			gain:        6,
			freq:        1000,
			expected:    math.Pow(10, 6.0/20),
			delta:       0.02,
		},
		{
			description: "cut at center",
			center:      4000,
			gain:        -12,
			freq:        4000,
			expected:    math.Pow(10, -12.0/20),
			delta:       0.01,
		},
		{
			description: "far from center is untouched",
			center:      60,
			gain:        6,
			freq:        10000,
			expected:    1,
			delta:       0.01,
		},
		{
			description: "center above nyquist passes through",
			center:      30000,
			gain:        12,
			freq:        1000,
			expected:    1,
			delta:       1e-9,
		},
	}
	n := sampleRate
	for _, test := range tests {
		b := primitive.NewBand(test.center, 1, sampleRate)
		b.SetGain(test.gain)
		assert.Equal(t, test.gain, b.Gain(), test.description)
		left := sine(test.freq, 0.1, n)
		right := sine(test.freq, 0.1, n)
		in := magnitude(t, test.freq, left[n/2:])
		b.Process(left, right)
		assert.InDelta(t, test.expected, magnitude(t, test.freq, left[n/2:])/in, test.delta, test.description)
		assert.Equal(t, left, right, test.description)
	}
}

func TestBandFlatPreservesEnergy(t *testing.T) {
	b := primitive.NewBand(250, 1, sampleRate)
	left := noise(4096)
	right := noise(4096)
	expected := energy(left)
	b.Process(left, right)
	assert.InDelta(t, expected, energy(left), expected*1e-9)
}

func TestReverb(t *testing.T) {
	render := func() ([]float64, []float64) {
		r, err := primitive.NewReverb(sampleRate, primitive.WithRT60(1), primitive.WithDamp(0.2))
		require.NoError(t, err)
		left := make([]float64, sampleRate/2)
		right := make([]float64, sampleRate/2)
		left[0], right[0] = 1, 1
		r.Process(left, right)
		return left, right
	}
	left1, right1 := render()
	left2, right2 := render()
	// render is deterministic.
	assert.Equal(t, left1, left2)
	assert.Equal(t, right1, right2)
	// wet only: no direct impulse.
	assert.Equal(t, 0.0, left1[0])
	assert.Greater(t, energy(left1), 0.0)
	// channels are decorrelated.
	assert.NotEqual(t, left1, right1)

	_, err := primitive.NewReverb(sampleRate, primitive.WithDamp(2))
	assert.Error(t, err)
}

func TestReverbReset(t *testing.T) {
	r, err := primitive.NewReverb(sampleRate)
	require.NoError(t, err)
	left := noise(2048)
	right := noise(2048)
	r.Process(left, right)
	r.Reset()
	left = make([]float64, 2048)
	right = make([]float64, 2048)
	r.Process(left, right)
	assert.Equal(t, 0.0, energy(left)+energy(right))
}

func TestSource(t *testing.T) {
	tests := []struct {
		description string
		azimuth     float64
		louder      string
	}{
		{description: "front is centered", azimuth: 0, louder: ""},
		{description: "right side", azimuth: 90, louder: "right"},
		{description: "left side", azimuth: -90, louder: "left"},
		{description: "rear right", azimuth: 150, louder: "right"},
	}
	for _, test := range tests {
		s, err := primitive.NewSource(sampleRate)
		require.NoError(t, err)
		s.SetPosition(test.azimuth, 0, 0.5)
		in := noise(4096)
		left := make([]float64, len(in))
		right := make([]float64, len(in))
		s.Render(in, left, right)
		el, er := energy(left), energy(right)
		switch test.louder {
		case "right":
			assert.Greater(t, er, el, test.description)
		case "left":
			assert.Greater(t, el, er, test.description)
		default:
			assert.InDelta(t, el, er, el*1e-9, test.description)
		}
	}
}

func TestSourceAccumulates(t *testing.T) {
	s, err := primitive.NewSource(sampleRate)
	require.NoError(t, err)
	in := noise(512)
	left := make([]float64, len(in))
	right := make([]float64, len(in))
	for i := range left {
		left[i], right[i] = 1, 1
	}

	// silent source leaves output untouched.
	s.SetPosition(30, 10, 0)
	s.Render(in, left, right)
	for i := range left {
		assert.Equal(t, 1.0, left[i])
		assert.Equal(t, 1.0, right[i])
	}

	// two identical sources sum to twice one source.
	one, err := primitive.NewSource(sampleRate)
	require.NoError(t, err)
	two, err := primitive.NewSource(sampleRate)
	require.NoError(t, err)
	one.SetPosition(-30, 0, 0.5)
	two.SetPosition(-30, 0, 0.5)
	single := make([]float64, len(in))
	scratch := make([]float64, len(in))
	one.Render(in, single, scratch)

	one.Reset()
	sumLeft := make([]float64, len(in))
	sumRight := make([]float64, len(in))
	one.Render(in, sumLeft, sumRight)
	two.Render(in, sumLeft, sumRight)
	for i := range single {
		assert.InDelta(t, 2*single[i], sumLeft[i], 1e-12)
	}
	assert.Equal(t, 0.5, one.Volume())
}
