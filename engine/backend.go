package engine

// StreamConfig describes the output stream requested from a backend.
type StreamConfig struct {
	SampleRate        int
	Channels          int
	FramesPerCallback int
}

// Callback is implemented by the engine and driven by a backend stream.
type Callback interface {
	// Render fills interleaved out with len(out)/channels frames. It's
	// called on the real-time thread.
	Render(out []float32, channels int)
	// OnErrorAfterClose is called once the backend closed the stream
	// because of an error, for example a disconnected device.
	OnErrorAfterClose(err error)
}

// Backend opens output streams on a device.
type Backend interface {
	Open(cfg StreamConfig, cb Callback) (Stream, error)
}

// Stream is an opened output stream. Callbacks are only delivered between
// Start and Stop.
type Stream interface {
	Start() error
	Stop() error
	Close() error
	// SampleRate returns the rate the device actually runs at.
	SampleRate() int
}
