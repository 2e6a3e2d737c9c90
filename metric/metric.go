// Package metric measures real-time callbacks. Counters are aggregated
// per component type and published with expvar, every Meter also keeps
// its own counters. Updates are atomic and don't allocate, so a Meter can
// be used from the audio callback.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtfx/signal"
)

const componentsLabel = "rtfx.components"

const (
	// CallbackCounter measures number of callbacks.
	CallbackCounter = "Callbacks"
	// FrameCounter measures number of rendered frames.
	FrameCounter = "Frames"
	// UnderflowCounter measures frames filled with silence on underflow.
	UnderflowCounter = "Underflow"
	// SkipCounter measures callbacks that skipped processing.
	SkipCounter = "Skipped"
	// LatencyCounter measures duration of the latest callback.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of rendered signal.
	DurationCounter = "Duration"
	// ComponentCounter counts number of meters.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		CallbackCounter,
		FrameCounter,
		UnderflowCounter,
		SkipCounter,
		LatencyCounter,
		DurationCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Snapshot is a copy of one meter's counters.
type Snapshot struct {
	Callbacks int64
	Frames    int64
	Underflow int64
	Skipped   int64
	Latency   time.Duration
	Duration  time.Duration
}

// Meter captures counters of one component instance.
type Meter struct {
	shared     metric
	sampleRate int

	callbacks atomic.Int64
	frames    atomic.Int64
	underflow atomic.Int64
	skipped   atomic.Int64
	latency   atomic.Int64
	duration  atomic.Int64

	// owned by the measured goroutine.
	bufferFrames   int
	bufferDuration time.Duration
}

// NewMeter creates new meter for component running at sample rate.
func NewMeter(component interface{}, sampleRate int) *Meter {
	m := &Meter{
		shared:     components.get(getType(component)),
		sampleRate: sampleRate,
	}
	m.shared.components.Add(1)
	return m
}

// Callback captures one callback that rendered frames in took time.
func (m *Meter) Callback(frames int, took time.Duration) {
	// recalculate buffer duration only when buffer size has changed
	if frames != m.bufferFrames {
		m.bufferFrames = frames
		m.bufferDuration = signal.DurationOf(m.sampleRate, int64(frames))
	}
	m.callbacks.Add(1)
	m.frames.Add(int64(frames))
	m.latency.Store(int64(took))
	m.duration.Add(int64(m.bufferDuration))

	m.shared.callbacks.Add(1)
	m.shared.frames.Add(int64(frames))
	m.shared.latency.set(took)
	m.shared.duration.add(m.bufferDuration)
}

// Underflow captures frames that were filled with silence.
func (m *Meter) Underflow(frames int) {
	if frames <= 0 {
		return
	}
	m.underflow.Add(int64(frames))
	m.shared.underflow.Add(int64(frames))
}

// Skip captures a callback that didn't process.
func (m *Meter) Skip() {
	m.skipped.Add(1)
	m.shared.skipped.Add(1)
}

// Snapshot returns meter counters.
func (m *Meter) Snapshot() Snapshot {
	return Snapshot{
		Callbacks: m.callbacks.Load(),
		Frames:    m.frames.Load(),
		Underflow: m.underflow.Load(),
		Skipped:   m.skipped.Load(),
		Latency:   time.Duration(m.latency.Load()),
		Duration:  time.Duration(m.duration.Load()),
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	callbacks  *expvar.Int
	frames     *expvar.Int
	underflow  *expvar.Int
	skipped    *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		callbacks:  expvar.NewInt(key(componentType, CallbackCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		underflow:  expvar.NewInt(key(componentType, UnderflowCounter)),
		skipped:    expvar.NewInt(key(componentType, SkipCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
