// Package quiesce provides a gate that lets a control goroutine release
// a resource shared with the real-time callback without racing it.
//
// Callback side:
//
//	if !g.Enter() {
//		return // shutting down, output silence
//	}
//	defer g.Exit()
//
// Control side:
//
//	g.Quiesce(quiesce.DefaultTimeout, quiesce.DefaultStep, release)
package quiesce

import (
	"sync/atomic"
	"time"
)

// Drain defaults.
const (
	DefaultTimeout = 200 * time.Millisecond
	DefaultStep    = time.Millisecond
)

// Guard is a shutting-down flag and an in-flight counter. Zero value is
// ready to use.
type Guard struct {
	shutting atomic.Bool
	inFlight atomic.Int64
}

// Enter registers a processing call. It returns false if shutdown was
// signaled before or right after the call registered, in which case the
// call must not touch the guarded resource and must not call Exit.
func (g *Guard) Enter() bool {
	if g.shutting.Load() {
		return false
	}
	g.inFlight.Add(1)
	if g.shutting.Load() {
		g.inFlight.Add(-1)
		return false
	}
	return true
}

// Exit unregisters a processing call admitted by Enter.
func (g *Guard) Exit() {
	g.inFlight.Add(-1)
}

// Shutdown rejects all further Enter calls.
func (g *Guard) Shutdown() {
	g.shutting.Store(true)
}

// Resume admits Enter calls again.
func (g *Guard) Resume() {
	g.shutting.Store(false)
}

// ShuttingDown reports if shutdown is signaled.
func (g *Guard) ShuttingDown() bool {
	return g.shutting.Load()
}

// InFlight returns number of admitted calls that haven't exited yet.
func (g *Guard) InFlight() int {
	return int(g.inFlight.Load())
}

// Drain waits until no calls are in flight, polling every step. It
// returns false if timeout expired first. A call delayed by the
// scheduler past the timeout may still be running.
func (g *Guard) Drain(timeout, step time.Duration) bool {
	if step <= 0 {
		step = DefaultStep
	}
	deadline := time.Now().Add(timeout)
	for g.inFlight.Load() > 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(step)
	}
	return true
}

// Quiesce signals shutdown, drains in-flight calls, calls release and
// admits calls again. Release is called even if drain timed out. It
// returns the drain result.
func (g *Guard) Quiesce(timeout, step time.Duration, release func()) bool {
	g.Shutdown()
	defer g.Resume()
	drained := g.Drain(timeout, step)
	if release != nil {
		release()
	}
	return drained
}
