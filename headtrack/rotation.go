package headtrack

import (
	"errors"
	"sync"
	"time"
)

// ErrRegistered is returned when a sensor already has a subscriber.
var ErrRegistered = errors.New("sensor already registered")

// Rotation is a simulated sensor for a listener turning at constant
// speed in degrees per second, starting at Start degrees.
type Rotation struct {
	Start float64
	Speed float64

	mu     sync.Mutex
	cancel chan struct{}
	done   chan struct{}
}

// Register starts reporting azimuth every period. Batching latency is
// ignored.
func (r *Rotation) Register(period, _ time.Duration, fn func(azimuth float64)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return ErrRegistered
	}
	r.cancel = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(period, fn, r.cancel, r.done)
	return nil
}

func (r *Rotation) run(period time.Duration, fn func(float64), cancel, done chan struct{}) {
	defer close(done)
	started := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-cancel:
			return
		case now := <-ticker.C:
			fn(r.Start + r.Speed*now.Sub(started).Seconds())
		}
	}
}

// Unregister stops reporting and waits for the last report.
func (r *Rotation) Unregister() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	close(r.cancel)
	<-r.done
	r.cancel, r.done = nil, nil
}
