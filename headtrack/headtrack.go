// Package headtrack turns listener orientation samples into a smoothed
// yaw feed for the spatializer.
package headtrack

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/pipelined/rtfx"
	"github.com/pipelined/rtfx/log"
)

// Smoothing defaults.
const (
	DefaultAlpha    = 0.15
	DefaultMinDelta = 0.2
)

// ErrNoSensor is returned when orientation sensor isn't available.
var ErrNoSensor = errors.New("orientation sensor not available")

// Mode defines sampling policy of the sensor.
type Mode int

const (
	// Foreground samples at about 50 Hz without batching.
	Foreground Mode = iota
	// BackgroundLowPower samples at about 5 Hz and lets the sensor batch
	// reports for up to two seconds.
	BackgroundLowPower
)

// SamplingPeriod returns time between sensor samples.
func (m Mode) SamplingPeriod() time.Duration {
	if m == BackgroundLowPower {
		return 200 * time.Millisecond
	}
	return 20 * time.Millisecond
}

// MaxReportLatency returns how long the sensor may batch samples.
func (m Mode) MaxReportLatency() time.Duration {
	if m == BackgroundLowPower {
		return 2 * time.Second
	}
	return 0
}

func (m Mode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case BackgroundLowPower:
		return "background low power"
	}
	return "unknown"
}

// Sensor delivers listener azimuth in degrees to fn.
type Sensor interface {
	Register(period, maxLatency time.Duration, fn func(azimuth float64)) error
	Unregister()
}

// Normalize wraps degrees into [-180, 180].
func Normalize(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	return math.Remainder(deg, 360)
}

// ShortestDelta returns the signed shortest turn from one angle to the
// other, in [-180, 180].
func ShortestDelta(from, to float64) float64 {
	return Normalize(to - from)
}

// Smoother is a wrap-aware exponential smoother. Changes smaller than
// MinDelta are treated as noise and keep the previous value.
type Smoother struct {
	Alpha    float64
	MinDelta float64

	last    float64
	hasLast bool
}

// NewSmoother returns smoother with default settings.
func NewSmoother() *Smoother {
	return &Smoother{
		Alpha:    DefaultAlpha,
		MinDelta: DefaultMinDelta,
	}
}

// Update consumes a raw yaw sample and returns smoothed yaw.
func (s *Smoother) Update(yaw float64) float64 {
	yaw = Normalize(yaw)
	if !s.hasLast {
		s.hasLast = true
		s.last = yaw
		return yaw
	}
	delta := ShortestDelta(s.last, yaw)
	if math.Abs(delta) >= s.MinDelta {
		s.last = Normalize(s.last + s.Alpha*delta)
	}
	return s.last
}

// Reset forgets the previous sample.
func (s *Smoother) Reset() {
	s.hasLast = false
	s.last = 0
}

// Tracker subscribes to a sensor and forwards smoothed yaw to sink.
type Tracker struct {
	rtfx.UID
	logger log.Logger
	sensor Sensor
	sink   func(yaw float64)

	mu       sync.Mutex
	tracking bool
	mode     Mode

	// smu guards smoother, sensor delivers samples while Stop waits for it.
	smu      sync.Mutex
	smoother *Smoother
}

// Option configures the tracker.
type Option func(*Tracker)

// WithLogger sets tracker logger.
func WithLogger(l log.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithSmoother replaces the default smoother.
func WithSmoother(s *Smoother) Option {
	return func(t *Tracker) {
		t.smoother = s
	}
}

// New returns a stopped tracker. Nil sensor makes Start fail with
// ErrNoSensor.
func New(sensor Sensor, sink func(yaw float64), options ...Option) *Tracker {
	t := &Tracker{
		UID:      rtfx.NewUID(),
		sensor:   sensor,
		sink:     sink,
		smoother: NewSmoother(),
	}
	for _, option := range options {
		option(t)
	}
	if t.logger == nil {
		t.logger = log.Component("headtrack", t.UID.String())
	}
	return t
}

// Start subscribes to the sensor in mode. Starting in the active mode is
// a no-op, a different mode re-subscribes.
func (t *Tracker) Start(mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sensor == nil {
		t.logger.Warn("orientation sensor not available")
		return ErrNoSensor
	}
	if t.tracking {
		if t.mode == mode {
			return nil
		}
		t.stop()
	}
	if err := t.sensor.Register(mode.SamplingPeriod(), mode.MaxReportLatency(), t.update); err != nil {
		return err
	}
	t.tracking = true
	t.mode = mode
	t.logger.Debugf("tracking started in %v mode", mode)
	return nil
}

// Stop unsubscribes from the sensor and resets smoothing.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stop()
}

func (t *Tracker) stop() {
	if !t.tracking {
		return
	}
	t.sensor.Unregister()
	t.tracking = false
	t.smu.Lock()
	t.smoother.Reset()
	t.smu.Unlock()
	t.logger.Debug("tracking stopped")
}

// Mode returns the active mode and whether tracker runs.
func (t *Tracker) Mode() (Mode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode, t.tracking
}

func (t *Tracker) update(azimuth float64) {
	t.smu.Lock()
	yaw := t.smoother.Update(azimuth)
	t.smu.Unlock()
	if t.sink != nil {
		t.sink(yaw)
	}
}
