// Package engine drives the preview output stream. It owns the stream
// lifecycle, renders the test tone or queued preview audio in the
// real-time callback and runs the installed processor over it.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/metric"
	"github.com/pipelined/rtfx/quiesce"
	"github.com/pipelined/rtfx/ring"
)

var (
	// ErrOpenStream is returned when backend failed to open the stream.
	ErrOpenStream = errors.New("open stream")
	// ErrStartStream is returned when opened stream failed to start.
	ErrStartStream = errors.New("start stream")
)

// Stats is a snapshot of engine counters.
type Stats struct {
	metric.Snapshot
	Ring ring.Stats
}

// Engine is the preview I/O engine. Lifecycle methods are serialized,
// the callback side never takes locks.
type Engine struct {
	rtfx.UID
	logger  log.Logger
	backend Backend
	guard   *quiesce.Guard

	// mu serializes lifecycle transitions.
	mu     sync.Mutex
	stream Stream

	running    atomic.Bool
	sampleRate atomic.Int64
	processor  atomic.Pointer[processorRef]
	ring       atomic.Pointer[ring.Buffer]
	meter      atomic.Pointer[metric.Meter]
	tone       *tone
}

type processorRef struct {
	rtfx.Processor
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets engine logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithGuard shares a quiescence guard with the owner of the processor.
// Callbacks rejected by the guard output silence.
func WithGuard(g *quiesce.Guard) Option {
	return func(e *Engine) {
		e.guard = g
	}
}

// New returns an idle engine that opens streams with backend.
func New(backend Backend, options ...Option) *Engine {
	e := &Engine{
		UID:     rtfx.NewUID(),
		backend: backend,
		tone:    newTone(),
	}
	for _, option := range options {
		option(e)
	}
	if e.logger == nil {
		e.logger = log.Component("engine", e.UID.String())
	}
	if e.guard == nil {
		e.guard = &quiesce.Guard{}
	}
	e.sampleRate.Store(rtfx.DefaultSampleRate)
	e.ring.Store(ring.New(ring.MinFrames, rtfx.DefaultSampleRate, ring.WithLogger(e.logger)))
	e.meter.Store(metric.NewMeter(e, rtfx.DefaultSampleRate))
	return e
}

// Start opens and starts a stereo stream and installs p as the processor.
// Starting a running engine is a no-op. Non-positive sample rate falls
// back to rtfx.DefaultSampleRate. On failure the engine stays idle and the
// error wraps ErrOpenStream or ErrStartStream.
func (e *Engine) Start(sampleRate, framesPerCallback int, p rtfx.Processor) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return nil
	}
	if e.stream != nil {
		// stream was closed by the backend after an error.
		if err := e.closeStream(); err != nil {
			e.logger.Debugf("release closed stream: %v", err)
		}
	}

	rate := rtfx.SampleRate(sampleRate)
	stream, err := e.backend.Open(StreamConfig{
		SampleRate:        rate,
		Channels:          rtfx.NumChannels,
		FramesPerCallback: framesPerCallback,
	}, e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStream, err)
	}
	if actual := stream.SampleRate(); actual > 0 && actual != rate {
		e.logger.Infof("device runs at %d Hz instead of requested %d Hz", actual, rate)
		rate = actual
	}
	capacity := ring.Capacity(framesPerCallback)

	// callbacks may fire as soon as the stream starts, so the new state is
	// published first and rolled back if start fails.
	prevRate, prevRing, prevMeter := e.sampleRate.Load(), e.ring.Load(), e.meter.Load()
	e.sampleRate.Store(int64(rate))
	e.ring.Store(ring.New(capacity, rate, ring.WithLogger(e.logger)))
	e.meter.Store(metric.NewMeter(e, rate))
	e.setProcessor(p)
	e.running.Store(true)
	if err := stream.Start(); err != nil {
		e.running.Store(false)
		if cerr := stream.Close(); cerr != nil {
			e.logger.Debugf("close failed stream: %v", cerr)
		}
		e.processor.Store(nil)
		e.sampleRate.Store(prevRate)
		e.ring.Store(prevRing)
		e.meter.Store(prevMeter)
		return fmt.Errorf("%w: %w", ErrStartStream, err)
	}
	e.stream = stream
	e.logger.Infof("started at %d Hz, %d frames per callback, ring %d frames", rate, framesPerCallback, capacity)
	return nil
}

// Stop stops and closes the stream and releases the processor. Stopping
// an idle engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running.Store(false)
	if e.stream == nil {
		return nil
	}
	err := e.closeStream()
	e.processor.Store(nil)
	e.logger.Info("stopped")
	return err
}

func (e *Engine) closeStream() error {
	var errs []error
	if err := e.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := e.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	e.stream = nil
	return errors.Join(errs...)
}

func (e *Engine) setProcessor(p rtfx.Processor) {
	if p == nil {
		e.processor.Store(nil)
		return
	}
	e.processor.Store(&processorRef{Processor: p})
}

// OnForeground is called when the host application becomes visible.
func (e *Engine) OnForeground() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Debug("foreground")
}

// OnBackground is called when the host application is hidden. The stream
// keeps running.
func (e *Engine) OnBackground() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Debug("background")
}

// OnErrorAfterClose marks the engine not running after the backend closed
// the stream. The stream is released on the next Start or Stop.
func (e *Engine) OnErrorAfterClose(err error) {
	e.logger.Errorf("stream closed: %v", err)
	e.running.Store(false)
}

// SetTestToneEnabled switches the test tone. Enabled tone replaces
// queued preview audio.
func (e *Engine) SetTestToneEnabled(enabled bool) {
	e.tone.enabled.Store(enabled)
}

// SetTestToneFrequency sets tone frequency, clamped to
// [MinToneFrequency, MaxToneFrequency].
func (e *Engine) SetTestToneFrequency(hz float64) {
	e.tone.setFrequency(hz)
}

// SetTestToneLevel sets linear tone level, clamped to [0, 1].
func (e *Engine) SetTestToneLevel(level float64) {
	e.tone.setLevel(level)
}

// TestTone returns test tone settings.
func (e *Engine) TestTone() (enabled bool, hz, level float64) {
	return e.tone.settings()
}

// EnqueuePreview queues interleaved stereo frames for playback. It's
// ignored while the engine is not running. Must be called from a single
// producer goroutine.
func (e *Engine) EnqueuePreview(samples []float32, frames, sampleRate int) {
	if !e.running.Load() {
		return
	}
	e.ring.Load().Enqueue(samples, frames, sampleRate)
}

// ClearPreview drops queued preview frames.
func (e *Engine) ClearPreview() {
	e.ring.Load().Discard()
}

// Render implements Callback. Output is the test tone if enabled or
// queued preview frames otherwise, processed by the installed processor.
func (e *Engine) Render(out []float32, channels int) {
	if channels != rtfx.NumChannels {
		clear(out)
		return
	}
	started := time.Now()
	frames := len(out) / channels
	clear(out[frames*channels:])
	rate := int(e.sampleRate.Load())
	meter := e.meter.Load()

	if e.tone.enabled.Load() {
		e.tone.render(out, frames, rate)
	} else {
		taken := e.ring.Load().Dequeue(out, frames)
		meter.Underflow(frames - taken)
	}

	if !e.guard.Enter() {
		clear(out)
		meter.Skip()
		return
	}
	defer e.guard.Exit()
	if p := e.processor.Load(); p != nil {
		p.Process(out, frames, rate)
	}
	meter.Callback(frames, time.Since(started))
}

// State returns current engine state.
func (e *Engine) State() State {
	if e.running.Load() {
		return Running
	}
	return Idle
}

// IsRunning reports if the stream delivers callbacks.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// StreamSampleRate returns the rate of the latest stream.
func (e *Engine) StreamSampleRate() int {
	return int(e.sampleRate.Load())
}

// Stats returns counters of the latest stream.
func (e *Engine) Stats() Stats {
	return Stats{
		Snapshot: e.meter.Load().Snapshot(),
		Ring:     e.ring.Load().Stats(),
	}
}
