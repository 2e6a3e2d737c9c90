package wav

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/rtfx/signal"
)

const pcmFormat = 1

// Recorder writes interleaved float samples into a PCM wav file.
type Recorder struct {
	file     *os.File
	encoder  *wav.Encoder
	bitDepth signal.BitDepth
	ib       *audio.IntBuffer
}

// NewRecorder creates the file at path.
func NewRecorder(path string, sampleRate, numChannels int, bitDepth signal.BitDepth) (*Recorder, error) {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
	default:
		return nil, ErrUnsupportedBitDepth
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), numChannels, pcmFormat),
		bitDepth: bitDepth,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write appends samples to the file.
func (r *Recorder) Write(samples []float32) error {
	if cap(r.ib.Data) < len(samples) {
		r.ib.Data = make([]int, len(samples))
	}
	r.ib.Data = r.ib.Data[:len(samples)]
	signal.FloatToInt(samples, r.bitDepth, r.ib.Data)
	return r.encoder.Write(r.ib)
}

// Close finalizes wav header and closes the file.
func (r *Recorder) Close() error {
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
