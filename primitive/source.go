package primitive

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/pipelined/rtfx/itd"
)

const (
	// shadow models the head blocking high frequencies at the far ear.
	shadowFreq = 1500.0
	shadowDB   = -9.0

	// rear sources lose some brilliance at both ears.
	rearDB = -4.0

	// elevation cue is a peak around the pinna notch region.
	pinnaFreq = 8000.0
	pinnaDB   = 6.0
	shelfQ    = 0.707
	pinnaQ    = 1.0
)

// Source renders a mono virtual source into a stereo pair using
// inter-aural time and level differences, head shadow and a simple
// elevation cue. Output is accumulated into destination buffers.
type Source struct {
	sampleRate float64
	rate       int
	line       *itd.Line

	azimuth   float64
	elevation float64
	volume    float64
	dirty     bool

	delayLeft, delayRight float64
	gainLeft, gainRight   float64

	shadowLeft, shadowRight *biquad.Section
	pinnaLeft, pinnaRight   *biquad.Section
}

// NewSource returns a source facing the listener at zero volume.
func NewSource(sampleRate int) (*Source, error) {
	line, err := itd.New(sampleRate)
	if err != nil {
		return nil, err
	}
	s := &Source{
		sampleRate:  float64(sampleRate),
		rate:        sampleRate,
		line:        line,
		shadowLeft:  biquad.NewSection(unity),
		shadowRight: biquad.NewSection(unity),
		pinnaLeft:   biquad.NewSection(unity),
		pinnaRight:  biquad.NewSection(unity),
		dirty:       true,
	}
	s.update()
	return s, nil
}

// SetPosition sets source azimuth and elevation in degrees and input
// volume. Coefficients are only recomputed when the angles change.
func (s *Source) SetPosition(azimuth, elevation, volume float64) {
	s.volume = volume
	if azimuth == s.azimuth && elevation == s.elevation && !s.dirty {
		return
	}
	s.azimuth = azimuth
	s.elevation = elevation
	s.update()
}

// Volume returns the input volume.
func (s *Source) Volume() float64 {
	return s.volume
}

func (s *Source) update() {
	s.dirty = false
	theta := s.azimuth * math.Pi / 180
	lateral := math.Sin(theta)

	// constant power pan on lateral position.
	pan := (lateral + 1) * math.Pi / 4
	s.gainLeft = math.Cos(pan)
	s.gainRight = math.Sin(pan)
	s.delayLeft, s.delayRight = itd.Delays(s.azimuth, s.rate)

	rear := 0.0
	if c := math.Cos(theta); c < 0 {
		rear = -c
	}
	farLeft := math.Max(0, lateral)
	farRight := math.Max(0, -lateral)
	s.shadowLeft.Coefficients = shelf(shadowDB*farLeft+rearDB*rear, s.sampleRate)
	s.shadowRight.Coefficients = shelf(shadowDB*farRight+rearDB*rear, s.sampleRate)

	elevation := math.Max(-90, math.Min(90, s.elevation))
	pinna := design.Peak(pinnaFreq, pinnaDB*elevation/90, pinnaQ, s.sampleRate)
	if pinna == (biquad.Coefficients{}) {
		pinna = unity
	}
	s.pinnaLeft.Coefficients = pinna
	s.pinnaRight.Coefficients = pinna
}

// shelf returns head shadow high shelf with gain in dB.
func shelf(db, sampleRate float64) biquad.Coefficients {
	if db == 0 {
		return unity
	}
	c := design.HighShelf(shadowFreq, db, shelfQ, sampleRate)
	if c == (biquad.Coefficients{}) {
		return unity
	}
	return c
}

// Render adds rendered input into left and right outputs.
func (s *Source) Render(in, left, right []float64) {
	for i := range in {
		s.line.Write(in[i] * s.volume)
		l := s.line.Read(s.delayLeft)
		r := s.line.Read(s.delayRight)
		l = s.pinnaLeft.ProcessSample(s.shadowLeft.ProcessSample(l))
		r = s.pinnaRight.ProcessSample(s.shadowRight.ProcessSample(r))
		left[i] += l * s.gainLeft
		right[i] += r * s.gainRight
	}
}

// Reset clears delay and filter history.
func (s *Source) Reset() {
	s.line.Reset()
	s.shadowLeft.Reset()
	s.shadowRight.Reset()
	s.pinnaLeft.Reset()
	s.pinnaRight.Reset()
}
