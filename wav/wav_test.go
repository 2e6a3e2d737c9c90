package wav_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/rtfx/internal/mock"
	"github.com/pipelined/rtfx/log"
	"github.com/pipelined/rtfx/signal"
	"github.com/pipelined/rtfx/wav"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ramp returns frames*channels samples in [-0.5, 0.5).
func ramp(frames, channels int) []float32 {
	s := make([]float32, frames*channels)
	for i := range s {
		s[i] = float32(i%100)/100 - 0.5
	}
	return s
}

func record(t *testing.T, samples []float32, sampleRate, channels int, bitDepth signal.BitDepth) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	r, err := wav.NewRecorder(path, sampleRate, channels, bitDepth)
	require.NoError(t, err)
	require.NoError(t, r.Write(samples))
	require.NoError(t, r.Close())
	return path
}

func TestProducer(t *testing.T) {
	tests := []struct {
		description string
		channels    int
		bitDepth    signal.BitDepth
		frames      int
		blockFrames int
		blocks      int
		delta       float64
	}{
		{description: "stereo 16 bit", channels: 2, bitDepth: signal.BitDepth16, frames: 1000, blockFrames: 256, blocks: 4, delta: 1.0 / 32768},
		{description: "mono 24 bit", channels: 1, bitDepth: signal.BitDepth24, frames: 300, blockFrames: 100, blocks: 3, delta: 1.0 / 8388608},
		{description: "stereo 32 bit", channels: 2, bitDepth: signal.BitDepth32, frames: 10, blockFrames: 1024, blocks: 1, delta: 1e-7},
	}
	for _, test := range tests {
		in := ramp(test.frames, test.channels)
		path := record(t, in, 22050, test.channels, test.bitDepth)

		p, err := wav.Open(path,
			wav.WithBlockFrames(test.blockFrames),
			wav.WithPacing(false),
			wav.WithLogger(log.Discard()),
		)
		require.NoError(t, err, test.description)
		assert.Equal(t, 22050, p.SampleRate(), test.description)
		assert.Equal(t, test.channels, p.NumChannels(), test.description)
		assert.Equal(t, test.bitDepth, p.BitDepth(), test.description)

		c := &mock.Enqueuer{}
		sent, err := p.Run(context.Background(), c)
		require.NoError(t, err, test.description)
		assert.Equal(t, int64(test.frames), sent, test.description)
		blocks, _ := c.Count()
		assert.Equal(t, test.blocks, blocks, test.description)
		assert.Equal(t, 22050, c.SampleRate, test.description)
		require.Len(t, c.Samples, test.frames*2, test.description)
		for i := 0; i < test.frames; i++ {
			left, right := in[i*test.channels], in[i*test.channels]
			if test.channels == 2 {
				right = in[i*2+1]
			}
			assert.InDelta(t, left, c.Samples[2*i], test.delta, test.description)
			assert.InDelta(t, right, c.Samples[2*i+1], test.delta, test.description)
		}
		assert.NoError(t, p.Close(), test.description)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "text.wav")
	require.NoError(t, os.WriteFile(text, []byte("definitely not a riff file"), 0o644))

	tests := []struct {
		description string
		path        string
		err         error
	}{
		{description: "missing file", path: filepath.Join(dir, "missing.wav"), err: os.ErrNotExist},
		{description: "not a wav", path: text, err: wav.ErrInvalidFile},
	}
	for _, test := range tests {
		_, err := wav.Open(test.path, wav.WithLogger(log.Discard()))
		assert.ErrorIs(t, err, test.err, test.description)
	}

	_, err := wav.NewRecorder(filepath.Join(dir, "out.wav"), 44100, 2, signal.BitDepth8)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
}

func TestPacedRun(t *testing.T) {
	// one second in blocks of 100 ms.
	path := record(t, ramp(8000, 2), 8000, 2, signal.BitDepth16)
	p, err := wav.Open(path, wav.WithBlockFrames(800), wav.WithLogger(log.Discard()))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	started := time.Now()
	sent, err := p.Run(ctx, &mock.Enqueuer{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 900*time.Millisecond)
	assert.Greater(t, sent, int64(0))
	assert.Less(t, sent, int64(8000))
}
