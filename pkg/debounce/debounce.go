// Package debounce delays work until a burst of calls has gone quiet.
//
// # Description
//
// A Debouncer holds at most one pending function per key. Each Trigger for a
// key replaces the pending function and restarts the key's timer, so only the
// last call in a burst runs, once the key has been quiet for its window.
//
// # Thread Safety
//
// Safe for concurrent use. Pending functions run on their timer's goroutine,
// or on the caller's goroutine for Flush, never while the Debouncer's lock is
// held.
package debounce

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	fn    func()
	seq   uint64
}

// Debouncer runs the last function triggered for a key after that key has
// been quiet for a window.
type Debouncer struct {
	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	stopped bool
}

// New creates an empty Debouncer.
func New() *Debouncer {
	return &Debouncer{entries: make(map[string]*entry)}
}

// Trigger schedules fn to run after window unless another Trigger for the
// same key arrives first. Triggers after Stop are ignored.
func (d *Debouncer) Trigger(key string, window time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}
	d.seq++
	seq := d.seq
	e := &entry{fn: fn, seq: seq}
	e.timer = time.AfterFunc(window, func() { d.fire(key, seq) })
	d.entries[key] = e
}

func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	e, ok := d.entries[key]
	// A newer Trigger, Flush or Cancel won the race with this timer.
	if !ok || e.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	e.fn()
}

// Flush runs the pending function for key now, on the caller's goroutine.
// It reports whether anything was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	e, ok := d.entries[key]
	if ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	e.fn()
	return true
}

// Cancel drops the pending function for key. It reports whether anything was
// pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[key]
	if ok {
		e.timer.Stop()
		delete(d.entries, key)
	}
	return ok
}

// Pending reports whether a function is waiting for key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Stop cancels every pending function and ignores later Triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
}
