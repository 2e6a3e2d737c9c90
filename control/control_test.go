package control_test

import (
	"math"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/rtfx/backend/headless"
	"github.com/pipelined/rtfx/control"
	"github.com/pipelined/rtfx/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newController(b *headless.Backend) *control.Controller {
	return control.New(b, control.WithLogger(log.Discard()))
}

func constant(frames int, v float32) []float32 {
	buf := make([]float32, frames*2)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestChainLifecycle(t *testing.T) {
	c := newController(headless.New(headless.WithManual()))
	assert.Nil(t, c.Chain())
	assert.Equal(t, 0, c.ChainSampleRate())
	// setters without chain are ignored.
	c.SetEQBand(0, 6)
	c.SetCompressor(-12, 4, 5, 50, 3)
	c.SetReverb(true, 0.5)
	c.SetSpatialEnabled(true)
	c.SetSpatialPosition(30, 0, 1)
	c.SetHeadTrackingEnabled(true)
	c.SetHeadTrackingYaw(10)

	require.NoError(t, c.CreateChain(44100))
	first := c.Chain()
	require.NotNil(t, first)
	assert.Equal(t, 44100, c.ChainSampleRate())
	assert.Equal(t, 0.0, first.EQBand(0))

	// create is a no-op when chain exists.
	require.NoError(t, c.CreateChain(48000))
	assert.Same(t, first, c.Chain())

	c.DestroyChain()
	assert.Nil(t, c.Chain())
	c.DestroyChain()

	require.NoError(t, c.CreateChain(0))
	assert.Equal(t, 48000, c.ChainSampleRate())
	c.Close()
	assert.Nil(t, c.Chain())
}

func TestEnsureChain(t *testing.T) {
	c := newController(headless.New(headless.WithManual()))
	assert.Equal(t, 48000, c.EnsureChain(0))
	ch := c.Chain()
	c.SetEQBand(2, -3)
	c.SetReverb(true, 0.4)

	assert.Equal(t, 48000, c.EnsureChain(48000))
	assert.Same(t, ch, c.Chain())

	// rate change replaces the chain and keeps parameters.
	c.SetSpatialEnabled(true)
	c.SetSpatialPosition(30, 10, 2)
	c.SetHeadTrackingEnabled(true)
	c.SetHeadTrackingYaw(-20)
	assert.Equal(t, 44100, c.EnsureChain(44100))
	replaced := c.Chain()
	assert.NotSame(t, ch, replaced)
	assert.Equal(t, 44100, c.ChainSampleRate())
	assert.Equal(t, ch.Bands(), replaced.Bands())
	assert.Equal(t, -3.0, replaced.EQBand(2))
	enabled, wet := replaced.Reverb()
	assert.True(t, enabled)
	assert.Equal(t, 0.4, wet)
	assert.True(t, replaced.SpatialEnabled())
	assert.True(t, replaced.HeadTrackingEnabled())
	assert.Equal(t, -20.0, replaced.HeadTrackingYaw())
	azimuth, elevation, distance := replaced.SpatialPosition()
	assert.Equal(t, [3]float64{30, 10, 2}, [3]float64{azimuth, elevation, distance})

	// old chain isn't touched, a callback still holding it keeps one configuration.
	assert.Equal(t, 48000, ch.SampleRate())
}

func TestEnsureChainWhileProcessing(t *testing.T) {
	c := newController(headless.New(headless.WithManual()))
	require.Equal(t, 48000, c.EnsureChain(48000))
	c.SetReverb(true, 0.3)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := constant(128, 0.1)
		for {
			select {
			case <-stop:
				return
			default:
			}
			c.ProcessBuffer(buf, 128, 0)
		}
	}()
	rates := []int{44100, 48000, 96000, 22050}
	for i := 0; i < 20; i++ {
		rate := rates[i%len(rates)]
		assert.Equal(t, rate, c.EnsureChain(rate))
		assert.Equal(t, rate, c.ChainSampleRate())
	}
	close(stop)
	wg.Wait()
	enabled, wet := c.Chain().Reverb()
	assert.True(t, enabled)
	assert.Equal(t, 0.3, wet)
}

func TestSpatialDisableTurnsHeadTrackingOff(t *testing.T) {
	c := newController(headless.New(headless.WithManual()))
	require.NoError(t, c.CreateChain(48000))
	c.SetSpatialEnabled(true)
	c.SetHeadTrackingEnabled(true)
	c.SetHeadTrackingYaw(45)
	assert.True(t, c.Chain().HeadTrackingEnabled())
	assert.Equal(t, 45.0, c.Chain().HeadTrackingYaw())

	c.SetSpatialEnabled(false)
	assert.False(t, c.Chain().SpatialEnabled())
	assert.False(t, c.Chain().HeadTrackingEnabled())
}

func TestProcessBuffer(t *testing.T) {
	b := headless.New(headless.WithManual())
	c := newController(b)
	gain := float32(math.Pow(10, 6.0/20))

	// no chain passes through.
	buf := constant(64, 0.25)
	c.ProcessBuffer(buf, 64, 48000)
	assert.Equal(t, constant(64, 0.25), buf)

	require.NoError(t, c.CreateChain(48000))
	c.SetCompressor(-24, 1, 10, 100, 6)

	tests := []struct {
		description string
		process     func(buf []float32)
		expected    float32
	}{
		{
			description: "buffer",
			process:     func(buf []float32) { c.ProcessBuffer(buf, 64, 48000) },
			expected:    0.25 * gain,
		},
		{
			description: "pointer",
			process:     func(buf []float32) { c.ProcessPointer(unsafe.Pointer(&buf[0]), 64, 48000) },
			expected:    0.25 * gain,
		},
		{
			description: "nil pointer",
			process:     func([]float32) { c.ProcessPointer(nil, 64, 48000) },
			expected:    0.25,
		},
		{
			description: "zero frames",
			process:     func(buf []float32) { c.ProcessBuffer(buf, 0, 48000) },
			expected:    0.25,
		},
	}
	for _, test := range tests {
		buf := constant(64, 0.25)
		test.process(buf)
		for i := range buf {
			assert.InDelta(t, test.expected, buf[i], 1e-6, test.description)
		}
	}

	// preview owns the chain while running.
	require.NoError(t, c.StartPreview(48000, 64))
	buf = constant(64, 0.25)
	c.ProcessBuffer(buf, 64, 48000)
	assert.Equal(t, constant(64, 0.25), buf)
	c.StopPreview()
}

func TestPreviewThroughChain(t *testing.T) {
	b := headless.New(headless.WithManual())
	c := newController(b)
	require.NoError(t, c.StartPreview(44100, 128))
	assert.True(t, c.PreviewRunning())
	assert.Equal(t, 44100, c.ChainSampleRate())
	c.PreviewOnBackground()
	c.PreviewOnForeground()

	c.SetCompressor(-24, 1, 10, 100, 6)
	gain := float32(math.Pow(10, 6.0/20))
	c.EnqueuePreviewPCM(constant(128, 0.25), 128, 44100)
	out := b.Last().Tick()
	for i := range out {
		assert.InDelta(t, 0.25*gain, out[i], 1e-6)
	}

	// callbacks after destroy pass audio through.
	c.DestroyChain()
	c.EnqueuePreviewPCM(constant(128, 0.25), 128, 44100)
	out = b.Last().Tick()
	assert.Equal(t, constant(128, 0.25), out)

	c.SetTestToneEnabled(true)
	c.SetTestToneFrequency(1000)
	c.SetTestToneLevel(0.5)
	out = b.Last().Tick()
	assert.Equal(t, float32(0), out[0])
	assert.InDelta(t, 0.5*math.Sin(2*math.Pi*1000/44100), out[2], 1e-6)

	stats := c.PreviewStats()
	assert.Equal(t, int64(3), stats.Callbacks)
	c.StopPreview()
	assert.False(t, c.PreviewRunning())
}

func TestConcurrentControl(t *testing.T) {
	c := newController(headless.New())
	require.NoError(t, c.StartPreview(48000, 64))
	c.SetTestToneEnabled(true)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.SetEQBand(i%5, float64(i%12)-6)
			c.SetSpatialEnabled(i%2 == 0)
			c.SetSpatialPosition(float64(i), 0, 1)
			c.SetReverb(i%3 == 0, 0.3)
			c.SetHeadTrackingYaw(float64(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			c.DestroyChain()
			time.Sleep(time.Millisecond)
			assert.NoError(t, c.CreateChain(48000))
		}
	}()
	wg.Wait()
	assert.Eventually(t, func() bool {
		return c.PreviewStats().Callbacks > 0
	}, time.Second, time.Millisecond)
	c.Close()
	assert.False(t, c.PreviewRunning())
	assert.Nil(t, c.Chain())
}
