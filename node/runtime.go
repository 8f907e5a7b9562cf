// Package node provides the periodic-component skeleton every client
// module (simulator, sensor, perception, prediction, planning,
// control, map, visualizer) and the daemon are built from, plus the
// status heartbeat
// channel every node publishes on. Grounded on the teacher's
// GohabServer/Coordinator start/stop contract (signal.NotifyContext,
// a background goroutine per owned component, cooperative shutdown)
// generalized from "one server with N transports" to "one node with
// one worker loop and any number of sub-threads".
package node

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/senseauto/drivebus/bus"
)

// Tick is invoked once per period by the worker loop. A returned
// error is logged (rate limited) and does not stop the loop: transient
// faults inside a node's control loop must never take the whole
// process down.
type Tick func(ctx context.Context) error

// Runtime is the reusable skeleton described in spec.md §4.7: an
// atomic running flag, one owned worker goroutine, a fixed tick
// period, and start/stop semantics that are idempotent and safe to
// call from a signal handler's trampoline (Stop flips an atomic flag,
// closes a channel, and then waits for the worker and heartbeat
// goroutines to return; it never blocks on a socket).
type Runtime struct {
	Name   string
	Bus    *bus.Bus
	Period time.Duration
	Tick   Tick

	running   atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	status    *StatusReporter
	tickFails atomic.Int64
}

// New constructs a Runtime. Call Subscribe (on the embedded Bus)
// for every topic the node needs before calling Start, so the start
// contract's "no early messages missed" guarantee holds.
func New(name string, b *bus.Bus, period time.Duration, tick Tick) *Runtime {
	return &Runtime{
		Name:   name,
		Bus:    b,
		Period: period,
		Tick:   tick,
		status: NewStatusReporter(name, b),
	}
}

// Start is idempotent: calling it while already running is a no-op.
// It starts the heartbeat reporter and spawns the worker goroutine.
func (r *Runtime) Start() {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.stopCh = make(chan struct{})
	r.status.Start()

	r.wg.Add(1)
	go r.loop()
}

// Stop sets running false, closes stopCh to wake the worker's sleep
// immediately, and joins the worker and heartbeat goroutines. Safe to
// call from a signal handler's trampoline: it never blocks on a
// socket or a condition the worker itself might be waiting on, only
// on the worker noticing the channel close.
func (r *Runtime) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
	r.status.Stop()
}

// Running reports whether the worker loop is currently active.
func (r *Runtime) Running() bool {
	return r.running.Load()
}

// SetStatus updates the node's self-reported heartbeat state.
func (r *Runtime) SetStatus(state State, message string) {
	r.status.SetStatus(state, message)
}

func (r *Runtime) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.Period)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				if n := r.tickFails.Add(1); n%100 == 1 {
					slog.Warn("node tick failed", "node", r.Name, "error", err.Error(), "occurrences", n)
				}
			}
		}
	}
}
