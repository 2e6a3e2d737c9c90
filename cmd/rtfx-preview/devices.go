package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pipelined/rtfx/backend/portaudio"
)

type devicesCommand struct{}

func (cmd *devicesCommand) Name() string {
	return "devices"
}

func (cmd *devicesCommand) Help() string {
	return "Show the list of output devices"
}

func (cmd *devicesCommand) Register(*flag.FlagSet) {}

func (cmd *devicesCommand) Run(stdout io.Writer) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s %d\t%s\t%d channels\t%.0f Hz\t%v\n", mark, d.Index, d.Name, d.Channels, d.SampleRate, d.Latency)
	}
	return nil
}
