// Package wav feeds WAV files into the preview queue and records
// rendered output into WAV files.
package wav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/signal"
)

// DefaultBlockFrames is the number of frames enqueued at once.
const DefaultBlockFrames = 1024

var (
	// ErrInvalidFile is returned when file isn't a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
	// ErrUnsupportedBitDepth is returned for bit depths other than 16, 24 and 32.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrUnsupportedFormat is returned for non-PCM files.
	ErrUnsupportedFormat = errors.New("only PCM wav is supported")
)

// Enqueuer accepts interleaved stereo frames.
type Enqueuer interface {
	EnqueuePreviewPCM(samples []float32, frames, sampleRate int)
}

// Producer decodes a wav file into stereo float blocks. It's a single
// use component.
type Producer struct {
	rtfx.UID
	logger      log.Logger
	blockFrames int
	paced       bool

	file        *os.File
	decoder     *wav.Decoder
	sampleRate  int
	numChannels int
	bitDepth    signal.BitDepth

	ib     *audio.IntBuffer
	floats []float32
	stereo []float32
}

// Option configures the producer.
type Option func(*Producer)

// WithBlockFrames sets number of frames per block.
func WithBlockFrames(n int) Option {
	return func(p *Producer) {
		if n > 0 {
			p.blockFrames = n
		}
	}
}

// WithPacing enables or disables real-time pacing in Run. It's enabled
// by default.
func WithPacing(paced bool) Option {
	return func(p *Producer) {
		p.paced = paced
	}
}

// WithLogger sets producer logger.
func WithLogger(l log.Logger) Option {
	return func(p *Producer) {
		p.logger = l
	}
}

// Open opens wav file at path.
func Open(path string, options ...Option) (*Producer, error) {
	p := &Producer{
		UID:         rtfx.NewUID(),
		blockFrames: DefaultBlockFrames,
		paced:       true,
	}
	for _, option := range options {
		option(p)
	}
	if p.logger == nil {
		p.logger = log.Component("wav", p.UID.String())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	if decoder.WavAudioFormat != pcmFormat {
		file.Close()
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
	default:
		file.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	p.file = file
	p.decoder = decoder
	p.sampleRate = int(decoder.SampleRate)
	p.numChannels = int(decoder.NumChans)
	p.bitDepth = bitDepth
	p.ib = &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, p.blockFrames*p.numChannels),
		SourceBitDepth: int(bitDepth),
	}
	p.floats = make([]float32, p.blockFrames*p.numChannels)
	p.stereo = make([]float32, p.blockFrames*rtfx.NumChannels)
	p.logger.Debugf("opened %s: %d Hz, %d channels, %d bits", path, p.sampleRate, p.numChannels, bitDepth)
	return p, nil
}

// SampleRate returns file sample rate.
func (p *Producer) SampleRate() int {
	return p.sampleRate
}

// NumChannels returns number of channels in file.
func (p *Producer) NumChannels() int {
	return p.numChannels
}

// BitDepth returns file bit depth.
func (p *Producer) BitDepth() signal.BitDepth {
	return p.bitDepth
}

// Read returns next stereo block and number of frames in it. The block is
// reused by the next call. At the end of file it returns io.EOF.
func (p *Producer) Read() ([]float32, int, error) {
	n, err := p.decoder.PCMBuffer(p.ib)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, err
	}
	frames := n / p.numChannels
	if frames == 0 {
		return nil, 0, io.EOF
	}
	signal.IntToFloat(p.ib.Data[:frames*p.numChannels], p.bitDepth, p.floats)
	signal.ToStereo(p.floats, p.numChannels, frames, p.stereo)
	return p.stereo[:frames*rtfx.NumChannels], frames, nil
}

// Run enqueues the whole file into dst. With pacing enabled blocks are
// enqueued at the file's real-time rate. It returns number of enqueued
// frames, and ctx error if it was canceled.
func (p *Producer) Run(ctx context.Context, dst Enqueuer) (int64, error) {
	var (
		sent    int64
		started = time.Now()
		timer   *time.Timer
	)
	if p.paced {
		timer = time.NewTimer(0)
		defer timer.Stop()
		<-timer.C
	}
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		block, frames, err := p.Read()
		if errors.Is(err, io.EOF) {
			p.logger.Debugf("enqueued %d frames", sent)
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		dst.EnqueuePreviewPCM(block, frames, p.sampleRate)
		sent += int64(frames)
		if !p.paced {
			continue
		}
		// stay one block ahead of playback.
		wait := time.Until(started.Add(signal.DurationOf(p.sampleRate, sent-int64(frames))))
		if wait <= 0 {
			continue
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close closes the file.
func (p *Producer) Close() error {
	return p.file.Close()
}
