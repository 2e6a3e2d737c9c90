// Package control is the surface the host application talks to. It owns
// the effect chain, processes media buffers through it and runs the
// preview engine with the same chain.
package control

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/chain"
	"github.com/pipelined/rtfx/engine"
	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/quiesce"
)

// Controller owns the chain, the quiescence guard and the preview engine.
// All methods are safe for concurrent use. ProcessBuffer and
// ProcessPointer are meant for a single media goroutine.
type Controller struct {
	rtfx.UID
	logger       log.Logger
	chainOptions []chain.Option
	timeout      time.Duration
	step         time.Duration

	guard  quiesce.Guard
	engine *engine.Engine

	// mu serializes chain replacement.
	mu    sync.Mutex
	chain atomic.Pointer[chain.Chain]
}

// Option configures the controller.
type Option func(*Controller)

// WithLogger sets controller logger, it's shared with the engine and
// created chains.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithChainOptions sets options used for every created chain.
func WithChainOptions(options ...chain.Option) Option {
	return func(c *Controller) {
		c.chainOptions = options
	}
}

// WithDrain sets how long chain release waits for in-flight callbacks.
func WithDrain(timeout, step time.Duration) Option {
	return func(c *Controller) {
		c.timeout, c.step = timeout, step
	}
}

// New returns a controller without a chain. Preview streams are opened
// with backend.
func New(backend engine.Backend, options ...Option) *Controller {
	c := &Controller{
		UID:     rtfx.NewUID(),
		timeout: quiesce.DefaultTimeout,
		step:    quiesce.DefaultStep,
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.Component("control", c.UID.String())
	}
	c.engine = engine.New(backend, engine.WithLogger(c.logger), engine.WithGuard(&c.guard))
	return c
}

func (c *Controller) newChain(sampleRate int) (*chain.Chain, error) {
	options := append([]chain.Option{chain.WithLogger(c.logger)}, c.chainOptions...)
	return chain.New(sampleRate, options...)
}

// CreateChain creates the chain for sample rate. It's a no-op if chain
// already exists.
func (c *Controller) CreateChain(sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chain.Load() != nil {
		return nil
	}
	ch, err := c.newChain(sampleRate)
	if err != nil {
		return err
	}
	c.chain.Store(ch)
	c.logger.Infof("chain %s created at %d Hz", ch.UID, ch.SampleRate())
	return nil
}

// DestroyChain releases the chain once callbacks have left it. Callbacks
// admitted afterwards pass audio through.
func (c *Controller) DestroyChain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chain.Load() == nil {
		return
	}
	drained := c.guard.Quiesce(c.timeout, c.step, func() {
		c.chain.Store(nil)
	})
	if !drained {
		c.logger.Warnf("chain released while callback may still run")
	}
	c.logger.Info("chain destroyed")
}

// EnsureChain makes sure a chain exists and runs at sample rate. A chain
// with a different rate is replaced by a new one built for the rate,
// parameters are carried over. Callbacks already running finish on the
// chain they loaded. Non-positive rate means rtfx.DefaultSampleRate.
// It returns the active chain rate or zero if no chain could be created.
func (c *Controller) EnsureChain(sampleRate int) int {
	rate := rtfx.SampleRate(sampleRate)
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.chain.Load()
	if current != nil && current.SampleRate() == rate {
		return rate
	}
	ch, err := c.newChain(rate)
	if err != nil {
		c.logger.Errorf("create chain for %d Hz: %v", rate, err)
		if current != nil {
			return current.SampleRate()
		}
		return 0
	}
	if current != nil {
		ch.CopyParams(current)
		c.logger.Infof("chain %s replaced by %s at %d Hz", current.UID, ch.UID, rate)
	}
	c.chain.Store(ch)
	return ch.SampleRate()
}

// Chain returns current chain or nil.
func (c *Controller) Chain() *chain.Chain {
	return c.chain.Load()
}

// ChainSampleRate returns current chain rate or zero without a chain.
func (c *Controller) ChainSampleRate() int {
	if ch := c.chain.Load(); ch != nil {
		return ch.SampleRate()
	}
	return 0
}

// SetEQBand sets equalizer band gain in dB.
func (c *Controller) SetEQBand(band int, db float64) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetEQBand(band, db)
	}
}

// SetCompressor sets compressor parameters.
func (c *Controller) SetCompressor(thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetCompressor(thresholdDB, ratio, attackMs, releaseMs, makeupDB)
	}
}

// SetReverb toggles reverb and sets its wet mix.
func (c *Controller) SetReverb(enabled bool, wet float64) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetReverb(enabled, wet)
	}
}

// SetSpatialEnabled toggles spatial rendering. Disabling it also turns
// head tracking off.
func (c *Controller) SetSpatialEnabled(enabled bool) {
	ch := c.chain.Load()
	if ch == nil {
		return
	}
	ch.SetSpatialEnabled(enabled)
	if !enabled {
		ch.SetHeadTrackingEnabled(false)
	}
}

// SetSpatialPosition sets virtual source position.
func (c *Controller) SetSpatialPosition(azimuth, elevation, distance float64) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetSpatialPosition(azimuth, elevation, distance)
	}
}

// SetHeadTrackingEnabled toggles head tracking.
func (c *Controller) SetHeadTrackingEnabled(enabled bool) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetHeadTrackingEnabled(enabled)
	}
}

// SetHeadTrackingYaw sets listener yaw in degrees.
func (c *Controller) SetHeadTrackingYaw(deg float64) {
	if ch := c.chain.Load(); ch != nil {
		ch.SetHeadTrackingYaw(deg)
	}
}

// ProcessBuffer processes interleaved stereo media samples in place. It's
// skipped while preview runs, the preview owns the chain then.
func (c *Controller) ProcessBuffer(buf []float32, frames, sampleRate int) {
	if buf == nil || frames <= 0 || c.engine.IsRunning() {
		return
	}
	if !c.guard.Enter() {
		return
	}
	defer c.guard.Exit()
	if ch := c.chain.Load(); ch != nil {
		ch.Process(buf, frames, sampleRate)
	}
}

// ProcessPointer processes frames of interleaved stereo float32 samples
// at ptr, for hosts that hand over raw memory.
func (c *Controller) ProcessPointer(ptr unsafe.Pointer, frames, sampleRate int) {
	if ptr == nil || frames <= 0 {
		return
	}
	c.ProcessBuffer(unsafe.Slice((*float32)(ptr), frames*rtfx.NumChannels), frames, sampleRate)
}

// process is installed into the engine. The engine calls it inside the
// guard.
func (c *Controller) process(buf []float32, frames, sampleRate int) {
	if ch := c.chain.Load(); ch != nil {
		ch.Process(buf, frames, sampleRate)
	}
}

// StartPreview makes sure the chain runs at sample rate and starts the
// preview stream through it.
func (c *Controller) StartPreview(sampleRate, framesPerCallback int) error {
	rate := c.EnsureChain(sampleRate)
	if rate == 0 {
		rate = rtfx.SampleRate(sampleRate)
	}
	return c.engine.Start(rate, framesPerCallback, rtfx.ProcessorFunc(c.process))
}

// StopPreview stops the preview stream.
func (c *Controller) StopPreview() {
	if err := c.engine.Stop(); err != nil {
		c.logger.Warnf("stop preview: %v", err)
	}
}

// PreviewOnForeground forwards the host visibility change.
func (c *Controller) PreviewOnForeground() {
	c.engine.OnForeground()
}

// PreviewOnBackground forwards the host visibility change.
func (c *Controller) PreviewOnBackground() {
	c.engine.OnBackground()
}

// EnqueuePreviewPCM queues interleaved stereo frames for preview.
func (c *Controller) EnqueuePreviewPCM(samples []float32, frames, sampleRate int) {
	c.engine.EnqueuePreview(samples, frames, sampleRate)
}

// SetTestToneEnabled switches preview test tone.
func (c *Controller) SetTestToneEnabled(enabled bool) {
	c.engine.SetTestToneEnabled(enabled)
}

// SetTestToneFrequency sets preview test tone frequency in Hz.
func (c *Controller) SetTestToneFrequency(hz float64) {
	c.engine.SetTestToneFrequency(hz)
}

// SetTestToneLevel sets preview test tone linear level.
func (c *Controller) SetTestToneLevel(level float64) {
	c.engine.SetTestToneLevel(level)
}

// PreviewRunning reports if preview stream runs.
func (c *Controller) PreviewRunning() bool {
	return c.engine.IsRunning()
}

// PreviewStats returns preview engine counters.
func (c *Controller) PreviewStats() engine.Stats {
	return c.engine.Stats()
}

// Close stops preview and destroys the chain.
func (c *Controller) Close() {
	c.StopPreview()
	c.DestroyChain()
}
