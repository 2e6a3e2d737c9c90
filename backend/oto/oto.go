// Package oto plays engine streams with the oto pull model: the player
// reads bytes from the stream and the stream renders them with the
// engine callback.
package oto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/pipelined/rtfx/engine"
)

const bytesPerSample = 4

// DefaultErrorPoll is how often a playing stream checks the player error.
const DefaultErrorPoll = 50 * time.Millisecond

// ErrContextMismatch is returned when a stream is opened with a format
// different from the process-wide oto context.
var ErrContextMismatch = errors.New("oto context format mismatch")

// oto allows one context per process.
var shared struct {
	sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// Backend opens oto players.
type Backend struct {
	bufferSize time.Duration
	errorPoll  time.Duration
}

// Option configures the backend.
type Option func(*Backend)

// WithBufferSize sets the device buffer duration. Zero picks the oto
// default.
func WithBufferSize(d time.Duration) Option {
	return func(b *Backend) {
		b.bufferSize = d
	}
}

// WithErrorPoll sets how often a playing stream checks the player error.
func WithErrorPoll(d time.Duration) Option {
	return func(b *Backend) {
		b.errorPoll = d
	}
}

// New returns oto backend.
func New(options ...Option) *Backend {
	b := &Backend{errorPoll: DefaultErrorPoll}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *Backend) context(sampleRate, channels int) (*oto.Context, error) {
	shared.Lock()
	defer shared.Unlock()
	if shared.ctx != nil {
		if shared.sampleRate != sampleRate || shared.channels != channels {
			return nil, fmt.Errorf("%w: context runs %d Hz %d channels, requested %d Hz %d channels",
				ErrContextMismatch, shared.sampleRate, shared.channels, sampleRate, channels)
		}
		return shared.ctx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   b.bufferSize,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	shared.ctx, shared.sampleRate, shared.channels = ctx, sampleRate, channels
	return ctx, nil
}

// Open implements engine.Backend.
func (b *Backend) Open(cfg engine.StreamConfig, cb engine.Callback) (engine.Stream, error) {
	ctx, err := b.context(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, err
	}
	r := &reader{
		callback: cb,
		channels: cfg.Channels,
	}
	if cfg.FramesPerCallback > 0 {
		r.buf = make([]float32, cfg.FramesPerCallback*cfg.Channels)
	}
	p := ctx.NewPlayer(r)
	if cfg.FramesPerCallback > 0 {
		p.SetBufferSize(cfg.FramesPerCallback * cfg.Channels * bytesPerSample)
	}
	return newStream(p, cb, cfg.SampleRate, b.errorPoll), nil
}

// reader renders callback output as float32 little-endian bytes.
type reader struct {
	callback engine.Callback
	channels int
	buf      []float32
}

func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / (bytesPerSample * r.channels)
	samples := frames * r.channels
	if cap(r.buf) < samples {
		// only happens when the player asks for more than requested.
		r.buf = make([]float32, samples)
	}
	buf := r.buf[:samples]
	r.callback.Render(buf, r.channels)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}
	clear(p[samples*bytesPerSample:])
	return len(p), nil
}

// player is the part of oto.Player used by the stream.
type player interface {
	Play()
	Pause()
	Err() error
	Close() error
}

// Stream is an oto player. Player errors that occur while playing are
// reported to the callback with OnErrorAfterClose.
type Stream struct {
	player     player
	callback   engine.Callback
	sampleRate int
	errorPoll  time.Duration
	closed     bool

	done chan struct{}
	wg   sync.WaitGroup
}

func newStream(p player, cb engine.Callback, sampleRate int, errorPoll time.Duration) *Stream {
	if errorPoll <= 0 {
		errorPoll = DefaultErrorPoll
	}
	return &Stream{
		player:     p,
		callback:   cb,
		sampleRate: sampleRate,
		errorPoll:  errorPoll,
	}
}

// Start implements engine.Stream.
func (s *Stream) Start() error {
	s.player.Play()
	if err := s.player.Err(); err != nil {
		return err
	}
	if s.done == nil {
		s.done = make(chan struct{})
		s.wg.Add(1)
		go s.watch(s.done)
	}
	return nil
}

// watch polls the player error until done is closed or an error is
// reported.
func (s *Stream) watch(done chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.errorPoll)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.player.Err(); err != nil {
				s.callback.OnErrorAfterClose(err)
				return
			}
		}
	}
}

func (s *Stream) stopWatch() {
	if s.done == nil {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.done = nil
}

// Stop implements engine.Stream. It returns the player error if the
// player failed while playing.
func (s *Stream) Stop() error {
	if s.closed {
		return nil
	}
	s.stopWatch()
	s.player.Pause()
	return s.player.Err()
}

// Close implements engine.Stream.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.stopWatch()
	s.closed = true
	return s.player.Close()
}

// SampleRate implements engine.Stream.
func (s *Stream) SampleRate() int {
	return s.sampleRate
}
