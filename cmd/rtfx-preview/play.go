package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/pipelined/rtfx/backend/headless"
	"github.com/pipelined/rtfx/backend/oto"
	"github.com/pipelined/rtfx/backend/portaudio"
	"github.com/pipelined/rtfx/control"
	"github.com/pipelined/rtfx/engine"
	"github.com/pipelined/rtfx/headtrack"
	"github.com/pipelined/rtfx/signal"
	"github.com/pipelined/rtfx/wav"
)

var errNoSource = errors.New("either -in or -tone is required")

type playCommand struct {
	backend    string
	sampleRate int
	frames     int
	in         string
	tone       float64
	level      float64
	duration   time.Duration
	record     string
	rotate     float64

	effects
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play a wav file or a test tone through the effect chain"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.backend, "backend", "portaudio", "output backend: portaudio, oto or null")
	fs.IntVar(&cmd.sampleRate, "rate", 48000, "stream sample rate")
	fs.IntVar(&cmd.frames, "frames", 256, "frames per callback")
	fs.StringVar(&cmd.in, "in", "", "wav file to play")
	fs.Float64Var(&cmd.tone, "tone", 0, "test tone frequency in Hz, zero disables the tone")
	fs.Float64Var(&cmd.level, "level", engine.DefaultToneLevel, "test tone level")
	fs.DurationVar(&cmd.duration, "duration", 0, "stop after duration, zero plays until interrupted")
	fs.StringVar(&cmd.record, "record", "", "record output into wav file, only with null backend")
	cmd.effects.register(fs)
	fs.Float64Var(&cmd.rotate, "rotate", 0, "simulated head rotation in degrees per second")
}

func (cmd *playCommand) validate() error {
	if cmd.in == "" && cmd.tone <= 0 {
		return errNoSource
	}
	if err := cmd.effects.validate(); err != nil {
		return err
	}
	if cmd.record != "" && cmd.backend != "null" {
		return fmt.Errorf("-record requires null backend")
	}
	return nil
}

// newBackend returns the output backend and a function that releases it.
func (cmd *playCommand) newBackend() (engine.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cmd.backend {
	case "portaudio":
		return portaudio.New(), noop, nil
	case "oto":
		return oto.New(), noop, nil
	case "null":
		if cmd.record == "" {
			return headless.New(), noop, nil
		}
		rec, err := wav.NewRecorder(cmd.record, cmd.sampleRate, 2, signal.BitDepth16)
		if err != nil {
			return nil, nil, err
		}
		var failed bool
		sink := func(buf []float32) {
			if failed {
				return
			}
			if err := rec.Write(buf); err != nil {
				failed = true
				logger.Errorf("record: %v", err)
			}
		}
		return headless.New(headless.WithSink(sink)), rec.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cmd.backend)
}

func (cmd *playCommand) configure(ctrl *control.Controller) {
	cmd.effects.apply(ctrl)
	if cmd.tone > 0 {
		ctrl.SetTestToneFrequency(cmd.tone)
		ctrl.SetTestToneLevel(cmd.level)
	}
}

func (cmd *playCommand) Run(stdout io.Writer) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	var producer *wav.Producer
	if cmd.in != "" {
		var err error
		if producer, err = wav.Open(cmd.in, wav.WithBlockFrames(cmd.frames)); err != nil {
			return err
		}
		defer producer.Close()
		if producer.SampleRate() != cmd.sampleRate {
			logger.Warnf("%s is %d Hz, stream runs at %d Hz", cmd.in, producer.SampleRate(), cmd.sampleRate)
		}
	}

	backend, release, err := cmd.newBackend()
	if err != nil {
		return err
	}
	ctrl := control.New(backend)
	if err := ctrl.CreateChain(cmd.sampleRate); err != nil {
		release()
		return err
	}
	cmd.configure(ctrl)

	if cmd.spatial && cmd.rotate != 0 {
		tracker := headtrack.New(&headtrack.Rotation{Speed: cmd.rotate}, ctrl.SetHeadTrackingYaw)
		ctrl.SetHeadTrackingEnabled(true)
		if err := tracker.Start(headtrack.Foreground); err != nil {
			logger.Warnf("head tracking: %v", err)
		}
		defer tracker.Stop()
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cmd.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.duration)
		defer cancel()
	}

	if err := ctrl.StartPreview(cmd.sampleRate, cmd.frames); err != nil {
		ctrl.Close()
		release()
		return err
	}
	if producer != nil {
		if _, err := producer.Run(ctx, ctrl); err != nil && ctx.Err() == nil {
			logger.Errorf("play %s: %v", cmd.in, err)
		}
		// let the queued tail play out.
		select {
		case <-ctx.Done():
		case <-time.After(signal.DurationOf(cmd.sampleRate, int64(ctrl.PreviewStats().Ring.Available))):
		}
	} else {
		ctrl.SetTestToneEnabled(true)
		<-ctx.Done()
	}

	stats := ctrl.PreviewStats()
	ctrl.Close()
	fmt.Fprintf(stdout, "callbacks: %d, frames: %d, underflow: %d, dropped: %d, last callback: %v\n",
		stats.Callbacks, stats.Frames, stats.Underflow, stats.Ring.Dropped, stats.Latency)
	return release()
}
