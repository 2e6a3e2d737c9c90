package chain

import (
	"github.com/pipelined/rtfx/primitive"
)

// Band is a stereo parametric filter for one equalizer band.
type Band interface {
	SetGain(db float64)
	Process(left, right []float64)
}

// Reverb renders pure wet signal in place.
type Reverb interface {
	Process(left, right []float64)
}

// Source renders one mono virtual source and adds it to the stereo
// output.
type Source interface {
	SetPosition(azimuth, elevation, volume float64)
	Render(in, left, right []float64)
}

// Primitives builds stage primitives for a sample rate. All returned
// values are used from the real-time thread only.
type Primitives interface {
	NewBand(center, octaves float64, sampleRate int) (Band, error)
	NewReverb(sampleRate int) (Reverb, error)
	NewSource(sampleRate int) (Source, error)
}

// dsp is the default primitive set.
type dsp struct{}

func (dsp) NewBand(center, octaves float64, sampleRate int) (Band, error) {
	return primitive.NewBand(center, octaves, sampleRate), nil
}

func (dsp) NewReverb(sampleRate int) (Reverb, error) {
	r, err := primitive.NewReverb(sampleRate)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (dsp) NewSource(sampleRate int) (Source, error) {
	s, err := primitive.NewSource(sampleRate)
	if err != nil {
		return nil, err
	}
	return s, nil
}
