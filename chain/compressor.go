package chain

import (
	"math"
	"sync/atomic"

	"github.com/pipelined/rtfx/signal"
)

// Compressor defaults.
const (
	DefaultThresholdDB = -24.0
	DefaultRatio       = 1.0
	DefaultAttackMs    = 10.0
	DefaultReleaseMs   = 100.0
	DefaultMakeupDB    = 0.0

	// minTimeMs keeps smoothing coefficients away from zero time.
	minTimeMs = 0.1
	// bypassEpsilon is the makeup tolerance for pure pass-through.
	bypassEpsilon = 1e-6
)

// compressor is a feed-forward, stereo-linked envelope follower. Settings
// are published by the control thread and picked up by the callback when
// version changes. Everything below the settings block is owned by the
// callback.
type compressor struct {
	thresholdDB param
	ratio       param
	attackMs    param
	releaseMs   param
	makeupDB    param
	version     atomic.Uint64

	loaded     uint64
	sampleRate int
	threshold  float64
	slope      float64
	makeup     float64
	attack     float64
	release    float64
	env        float64
}

func (c *compressor) set(thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) {
	if ratio < 1 || !finite(ratio) {
		ratio = 1
	}
	if attackMs < minTimeMs || !finite(attackMs) {
		attackMs = minTimeMs
	}
	if releaseMs < minTimeMs || !finite(releaseMs) {
		releaseMs = minTimeMs
	}
	if !finite(thresholdDB) {
		thresholdDB = DefaultThresholdDB
	}
	if !finite(makeupDB) {
		makeupDB = DefaultMakeupDB
	}
	c.thresholdDB.Store(thresholdDB)
	c.ratio.Store(ratio)
	c.attackMs.Store(attackMs)
	c.releaseMs.Store(releaseMs)
	c.makeupDB.Store(makeupDB)
	c.version.Add(1)
}

// coefficient returns one-pole smoothing coefficient for time in ms.
func coefficient(ms float64, sampleRate int) float64 {
	return math.Exp(-1 / (ms * 0.001 * float64(sampleRate)))
}

// load re-derives coefficients if settings or sample rate changed.
func (c *compressor) load(sampleRate int) {
	v := c.version.Load()
	if v == c.loaded && sampleRate == c.sampleRate {
		return
	}
	c.loaded = v
	c.sampleRate = sampleRate
	c.threshold = signal.DBToLinear(c.thresholdDB.Load())
	c.slope = c.ratio.Load() - 1
	c.makeup = signal.DBToLinear(c.makeupDB.Load())
	c.attack = coefficient(c.attackMs.Load(), sampleRate)
	c.release = coefficient(c.releaseMs.Load(), sampleRate)
}

func (c *compressor) process(left, right []float64, sampleRate int) {
	c.load(sampleRate)
	if c.slope <= 0 {
		if math.Abs(c.makeup-1) < bypassEpsilon {
			return
		}
		for i := range left {
			left[i] *= c.makeup
			right[i] *= c.makeup
		}
		return
	}
	env := c.env
	for i := range left {
		in := 0.5 * (math.Abs(left[i]) + math.Abs(right[i]))
		if in > env {
			env = c.attack*(env-in) + in
		} else {
			env = c.release*(env-in) + in
		}
		gain := c.makeup
		if env > c.threshold {
			gain *= math.Pow(env/c.threshold, -c.slope)
		}
		left[i] *= gain
		right[i] *= gain
	}
	c.env = env
}
