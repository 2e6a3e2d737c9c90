// Package portaudio plays engine streams on the default output device.
package portaudio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pipelined/rtfx/engine"
)

// Backend opens streams on the default output device.
type Backend struct{}

// New returns portaudio backend.
func New() *Backend {
	return &Backend{}
}

// Open initializes portaudio api and opens a float32 output stream that
// renders with cb. Every opened stream holds one portaudio reference, it
// is released by Close.
func (b *Backend) Open(cfg engine.StreamConfig, cb engine.Callback) (engine.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	channels := cfg.Channels
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(cfg.SampleRate), max(0, cfg.FramesPerCallback), func(out []float32) {
		cb.Render(out, channels)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	return &Stream{
		stream:     stream,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Stream is a portaudio output stream.
type Stream struct {
	stream     *portaudio.Stream
	sampleRate int
	closed     bool
}

// Start implements engine.Stream.
func (s *Stream) Start() error {
	return s.stream.Start()
}

// Stop implements engine.Stream. It returns after the pending callback
// completed.
func (s *Stream) Stop() error {
	if s.closed {
		return nil
	}
	return s.stream.Stop()
}

// Close closes the stream and terminates portaudio api.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// SampleRate returns the rate reported by the opened stream.
func (s *Stream) SampleRate() int {
	if info := s.stream.Info(); info != nil && info.SampleRate > 0 {
		return int(info.SampleRate)
	}
	return s.sampleRate
}

// Device describes an output device.
type Device struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
	Latency    time.Duration
	Default    bool
}

// Devices lists devices with output channels.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var defaultName string
	if d, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultName = d.Name
	}
	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		if info.MaxOutputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			Index:      i,
			Name:       info.Name,
			Channels:   info.MaxOutputChannels,
			SampleRate: info.DefaultSampleRate,
			Latency:    info.DefaultLowOutputLatency,
			Default:    info.Name == defaultName,
		})
	}
	return devices, nil
}
