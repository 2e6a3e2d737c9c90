// Package headless provides a backend without an audio device. Streams
// either tick on a timer at the real-time rate or are ticked manually,
// which makes callbacks deterministic in tests.
package headless

import (
	"errors"
	"sync"
	"time"

	"github.com/pipelined/rtfx/engine"
)

// DefaultFramesPerCallback is used when stream config doesn't set one.
const DefaultFramesPerCallback = 256

// ErrClosed is returned when a closed stream is started.
var ErrClosed = errors.New("stream is closed")

// Backend opens headless streams.
type Backend struct {
	channels   int
	sampleRate int
	manual     bool
	openErr    error
	startErr   error
	sink       func([]float32)

	mu     sync.Mutex
	opened []*Stream
}

// Option configures the backend.
type Option func(*Backend)

// WithChannels overrides the channel count of opened streams.
func WithChannels(n int) Option {
	return func(b *Backend) {
		b.channels = n
	}
}

// WithSampleRate makes streams run at rate regardless of requested one.
func WithSampleRate(rate int) Option {
	return func(b *Backend) {
		b.sampleRate = rate
	}
}

// WithManual disables the timer, callbacks happen only on Tick.
func WithManual() Option {
	return func(b *Backend) {
		b.manual = true
	}
}

// WithOpenError makes Open fail with err.
func WithOpenError(err error) Option {
	return func(b *Backend) {
		b.openErr = err
	}
}

// WithStartError makes Start fail with err.
func WithStartError(err error) Option {
	return func(b *Backend) {
		b.startErr = err
	}
}

// WithSink sets a function that receives every rendered buffer. The
// buffer is reused after sink returns.
func WithSink(fn func([]float32)) Option {
	return func(b *Backend) {
		b.sink = fn
	}
}

// New returns a headless backend.
func New(options ...Option) *Backend {
	b := &Backend{}
	for _, option := range options {
		option(b)
	}
	return b
}

// Open implements engine.Backend.
func (b *Backend) Open(cfg engine.StreamConfig, cb engine.Callback) (engine.Stream, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &Stream{
		callback:   cb,
		channels:   cfg.Channels,
		sampleRate: cfg.SampleRate,
		frames:     cfg.FramesPerCallback,
		manual:     b.manual,
		startErr:   b.startErr,
		sink:       b.sink,
	}
	if b.channels > 0 {
		s.channels = b.channels
	}
	if b.sampleRate > 0 {
		s.sampleRate = b.sampleRate
	}
	if s.frames <= 0 {
		s.frames = DefaultFramesPerCallback
	}
	s.buf = make([]float32, s.frames*s.channels)
	b.mu.Lock()
	b.opened = append(b.opened, s)
	b.mu.Unlock()
	return s, nil
}

// Last returns the latest opened stream or nil.
func (b *Backend) Last() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opened) == 0 {
		return nil
	}
	return b.opened[len(b.opened)-1]
}

// Stream is a headless output stream.
type Stream struct {
	callback   engine.Callback
	channels   int
	sampleRate int
	frames     int
	manual     bool
	startErr   error
	sink       func([]float32)
	buf        []float32

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  chan struct{}
	done    chan struct{}
}

// Start implements engine.Stream.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	if s.manual {
		return nil
	}
	s.cancel = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.cancel, s.done)
	return nil
}

func (s *Stream) run(cancel, done chan struct{}) {
	defer close(done)
	period := time.Duration(float64(s.frames) / float64(s.sampleRate) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

// Tick renders one callback and returns the output buffer, which is
// reused by the next callback. Returns nil if stream isn't started. In
// timer mode Tick must not be called.
func (s *Stream) Tick() []float32 {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.render()
	return s.buf
}

func (s *Stream) render() {
	s.callback.Render(s.buf, s.channels)
	if s.sink != nil {
		s.sink(s.buf)
	}
}

// Stop implements engine.Stream. It waits for the running callback.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}

func (s *Stream) stop() {
	if !s.started {
		return
	}
	s.started = false
	if s.cancel != nil {
		close(s.cancel)
		<-s.done
		s.cancel, s.done = nil, nil
	}
}

// Close implements engine.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	s.closed = true
	return nil
}

// Fail closes the stream the way a device disconnect does and notifies
// the callback.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	s.stop()
	s.closed = true
	s.mu.Unlock()
	s.callback.OnErrorAfterClose(err)
}

// SampleRate implements engine.Stream.
func (s *Stream) SampleRate() int {
	return s.sampleRate
}

// FramesPerCallback returns callback size.
func (s *Stream) FramesPerCallback() int {
	return s.frames
}

// Started reports if stream delivers callbacks.
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports if stream was closed.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
