package metric_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/rtfx/metric"
)

type engineA struct{}
type engineB struct{}

func TestMeter(t *testing.T) {
	sampleRate := 48000
	// test cases
	var tests = []struct {
		description        string
		component          interface{}
		routines           int
		callbacks          int
		frames             int
		expectedFrames     string
		expectedComponents string
	}{
		{
			description:        "two meters of one type",
			component:          engineA{},
			routines:           2,
			callbacks:          10,
			frames:             480,
			expectedFrames:     "9600",
			expectedComponents: "2",
		},
		{
			description:        "pointers share the type",
			component:          &engineA{},
			routines:           2,
			callbacks:          10,
			frames:             480,
			expectedFrames:     "19200",
			expectedComponents: "4",
		},
	}
	// function to test meter.
	testFn := func(m *metric.Meter, wg *sync.WaitGroup, callbacks, frames int) {
		for i := 0; i < callbacks; i++ {
			m.Callback(frames, time.Millisecond)
		}
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		meters := make([]*metric.Meter, c.routines)
		for i := range meters {
			meters[i] = metric.NewMeter(c.component, sampleRate)
			go testFn(meters[i], wg, c.callbacks, c.frames)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.component)
		assert.Equal(t, c.expectedFrames, values[metric.FrameCounter], c.description)
		assert.Equal(t, c.expectedComponents, values[metric.ComponentCounter], c.description)
		for _, m := range meters {
			s := m.Snapshot()
			assert.Equal(t, int64(c.callbacks), s.Callbacks, c.description)
			assert.Equal(t, int64(c.callbacks*c.frames), s.Frames, c.description)
			assert.Equal(t, time.Duration(c.callbacks)*10*time.Millisecond, s.Duration, c.description)
			assert.Equal(t, time.Millisecond, s.Latency, c.description)
		}
	}
}

func TestMeterUnderflowAndSkip(t *testing.T) {
	m := metric.NewMeter(engineB{}, 44100)
	m.Underflow(100)
	m.Underflow(0)
	m.Underflow(-3)
	m.Skip()
	m.Skip()
	s := m.Snapshot()
	assert.Equal(t, int64(100), s.Underflow)
	assert.Equal(t, int64(2), s.Skipped)

	values := metric.Get(engineB{})
	assert.Equal(t, "100", values[metric.UnderflowCounter])
	assert.Equal(t, "2", values[metric.SkipCounter])
	assert.Contains(t, metric.GetAll(), "metric_test.engineB")
}
