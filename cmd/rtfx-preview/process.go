package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pipelined/rtfx/adapter"
	"github.com/pipelined/rtfx/backend/headless"
	"github.com/pipelined/rtfx/control"
)

var errNoFiles = errors.New("-in and -out are required")

// processCommand runs raw interleaved stereo PCM through the chain the
// way a media pipeline does.
type processCommand struct {
	in         string
	out        string
	encoding   string
	sampleRate int
	block      int

	effects
}

func (cmd *processCommand) Name() string {
	return "process"
}

func (cmd *processCommand) Help() string {
	return "Process raw stereo pcm16 or float32 little-endian samples through the effect chain"
}

func (cmd *processCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.in, "in", "", "raw pcm input file")
	fs.StringVar(&cmd.out, "out", "", "raw pcm output file")
	fs.StringVar(&cmd.encoding, "encoding", "pcm16", "sample encoding: pcm16 or float32")
	fs.IntVar(&cmd.sampleRate, "rate", 48000, "input sample rate")
	fs.IntVar(&cmd.block, "block", 4096, "bytes read per input buffer")
	cmd.effects.register(fs)
}

func (cmd *processCommand) format() (adapter.Format, error) {
	f := adapter.Format{SampleRate: cmd.sampleRate, Channels: 2}
	switch cmd.encoding {
	case "pcm16":
		f.Encoding = adapter.EncodingPCM16
	case "float32":
		f.Encoding = adapter.EncodingFloat
	default:
		return f, fmt.Errorf("unknown encoding %q", cmd.encoding)
	}
	return f, nil
}

func (cmd *processCommand) validate() error {
	if cmd.in == "" || cmd.out == "" {
		return errNoFiles
	}
	// whole frames of both encodings.
	if cmd.block <= 0 || cmd.block%8 != 0 {
		return fmt.Errorf("block size %d is not a positive multiple of 8", cmd.block)
	}
	return cmd.effects.validate()
}

func (cmd *processCommand) Run(stdout io.Writer) error {
	if err := cmd.validate(); err != nil {
		return err
	}
	format, err := cmd.format()
	if err != nil {
		return err
	}
	in, err := os.Open(cmd.in)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(cmd.out)
	if err != nil {
		return err
	}

	// preview never starts, the media path owns the chain.
	ctrl := control.New(headless.New(headless.WithManual()))
	defer ctrl.Close()
	if err := ctrl.CreateChain(cmd.sampleRate); err != nil {
		out.Close()
		return err
	}
	cmd.effects.apply(ctrl)

	p := adapter.New(ctrl, adapter.WithSampleRate(ctrl.ChainSampleRate))
	if _, err := p.Configure(format); err != nil {
		out.Close()
		return err
	}
	written, err := pump(p, in, out, cmd.block)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "processed %d bytes as %v at %d Hz\n", written, format.Encoding, format.SampleRate)
	return nil
}

// pump feeds r through p into w until end of input. A trailing partial
// frame is dropped.
func pump(p *adapter.Processor, r io.Reader, w io.Writer, block int) (int64, error) {
	var written int64
	buf := make([]byte, block)
	pending := 0
	for {
		n, rerr := io.ReadFull(r, buf[pending:])
		pending += n
		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			p.QueueEndOfStream()
		} else if rerr != nil {
			return written, rerr
		}
		consumed := p.QueueInput(buf[:pending])
		if output := p.Output(); len(output) > 0 {
			m, err := w.Write(output)
			written += int64(m)
			if err != nil {
				return written, err
			}
		}
		pending = copy(buf, buf[consumed:pending])
		if p.IsEnded() {
			return written, nil
		}
	}
}
