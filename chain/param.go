package chain

import (
	"math"
	"sync/atomic"
)

// param is a float parameter with a single writer and a single reader.
type param struct {
	bits atomic.Uint64
}

func (p *param) Load() float64 {
	return math.Float64frombits(p.bits.Load())
}

func (p *param) Store(v float64) {
	p.bits.Store(math.Float64bits(v))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// finite reports if v is a usable parameter value.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
