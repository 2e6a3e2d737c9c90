/*
Package rtfx is a real-time stereo effect chain with a low-latency preview
output path.

The effect chain applies equalizer, compressor, spatializer and reverb
stages in place on interleaved float32 buffers. It is driven either by a
media pipeline through the control package or by the engine package, which
owns a hardware stream and pulls samples from a lock-free ring buffer.

Control changes are published with atomics and picked up on the next
callback. Chains are never mutated structurally while audio may run, they
are replaced, and the quiesce package makes sure the callback has left
the old chain before it's released.

	ctrl := control.New(portaudio.New())
	defer ctrl.Close()
	if err := ctrl.CreateChain(48000); err != nil {
		return err
	}
	ctrl.SetEQBand(0, 6)
	if err := ctrl.StartPreview(48000, 256); err != nil {
		return err
	}
	ctrl.SetTestToneEnabled(true)
*/
package rtfx
