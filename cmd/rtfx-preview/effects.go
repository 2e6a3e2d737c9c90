package main

import (
	"flag"
	"fmt"

	"github.com/pipelined/rtfx/chain"
	"github.com/pipelined/rtfx/control"
)

// effects holds chain settings shared by commands.
type effects struct {
	eq         floatList
	compressor floatList
	reverb     float64
	spatial    bool
	azimuth    float64
	elevation  float64
	distance   float64
}

func (e *effects) register(fs *flag.FlagSet) {
	fs.Var(&e.eq, "eq", "comma separated equalizer band gains in dB")
	fs.Var(&e.compressor, "compressor", "threshold dB, ratio, attack ms, release ms, makeup dB")
	fs.Float64Var(&e.reverb, "reverb", -1, "reverb wet mix, negative disables reverb")
	fs.BoolVar(&e.spatial, "spatial", false, "enable spatial rendering")
	fs.Float64Var(&e.azimuth, "azimuth", 0, "source azimuth in degrees")
	fs.Float64Var(&e.elevation, "elevation", 0, "source elevation in degrees")
	fs.Float64Var(&e.distance, "distance", chain.DefaultDistance, "source distance in meters")
}

func (e *effects) validate() error {
	if len(e.eq) > chain.NumBands {
		return fmt.Errorf("at most %d equalizer bands", chain.NumBands)
	}
	if len(e.compressor) != 0 && len(e.compressor) != 5 {
		return fmt.Errorf("compressor needs 5 values, got %d", len(e.compressor))
	}
	return nil
}

func (e *effects) apply(ctrl *control.Controller) {
	for i, db := range e.eq {
		ctrl.SetEQBand(i, db)
	}
	if c := e.compressor; len(c) == 5 {
		ctrl.SetCompressor(c[0], c[1], c[2], c[3], c[4])
	}
	if e.reverb >= 0 {
		ctrl.SetReverb(true, e.reverb)
	}
	ctrl.SetSpatialEnabled(e.spatial)
	ctrl.SetSpatialPosition(e.azimuth, e.elevation, e.distance)
}
