// Package refresh implements the background worker that periodically
// services active channels by calling a tick function supplied by its
// owner (the audio system's tick expires finished sounds). It replaces the original's refresh-thread-as-control-flow
// design with an explicit pause/resume protocol driven by a condition
// variable (spec §9 "Refresh thread as exception for control flow").
package refresh

import (
	"log"
	"sync"
	"time"
)

// ActiveInterval is the refresh cadence while hasWork reports true
// (spec §4.9).
const ActiveInterval = 200 * time.Millisecond

// IdleInterval is the refresh cadence while hasWork reports false (or is
// nil). It is shorter than ActiveInterval. A paused worker does not tick
// at either cadence (spec §4.9).
const IdleInterval = 150 * time.Millisecond

// ShutdownTimeout bounds how long Stop waits for an in-flight tick
// before abandoning it (spec §4.9: "Stop gives the worker 2 seconds to
// finish its current tick, then abandons it and logs a warning").
const ShutdownTimeout = 2 * time.Second

// Worker runs a Tick function on a timer, pausable via a condition
// variable instead of busy-waiting (spec §9).
type Worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	running bool

	tick   func()
	hasWork func() bool

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a Worker that calls tick() on every cadence, where
// hasWork reports whether any channel is currently active (selecting
// ActiveInterval vs IdleInterval).
func NewWorker(tick func(), hasWork func() bool) *Worker {
	w := &Worker{tick: tick, hasWork: hasWork}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Start launches the worker's background loop. No-op if already running.
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	w.mu.Unlock()

	go w.loop()
}

func (w *Worker) loop() {
	defer close(w.doneChan)
	for {
		interval := IdleInterval
		if w.hasWork != nil && w.hasWork() {
			interval = ActiveInterval
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-w.stopChan:
			timer.Stop()
			return
		}

		w.waitWhilePaused()

		select {
		case <-w.stopChan:
			return
		default:
		}

		if w.tick != nil {
			w.tick()
		}
	}
}

func (w *Worker) waitWhilePaused() {
	w.mu.Lock()
	for w.paused {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Pause suspends the worker before its next tick. Idempotent (spec §4.9:
// "Pause/Resume form a reentrant-safe gate around cache mutation").
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = true
}

// Resume wakes a paused worker. Idempotent.
func (w *Worker) Resume() {
	w.mu.Lock()
	w.paused = false
	w.mu.Unlock()
	w.cond.Broadcast()
}

// Stop requests the worker loop to exit, waiting up to ShutdownTimeout
// for the current tick to finish before abandoning it (spec §4.9).
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopChan := w.stopChan
	doneChan := w.doneChan
	w.mu.Unlock()

	close(stopChan)
	w.Resume() // unblock a paused worker so it can observe the stop signal

	select {
	case <-doneChan:
	case <-time.After(ShutdownTimeout):
		log.Printf("refresh worker: shutdown timed out after %s, abandoning in-flight tick", ShutdownTimeout)
	}
}
