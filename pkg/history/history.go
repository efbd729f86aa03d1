// Package history turns a stream of live edits into a bounded undo/redo
// stack. Rapid edits are coalesced: a value is committed as a history entry
// only after the edit stream has been quiet for the configured window.
package history

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
	"github.com/gomcpgo/photo_edit_session/pkg/debounce"
)

const debounceKey = "history"

// Reason says why the live value changed.
type Reason string

const (
	ReasonLive  Reason = "live"
	ReasonUndo  Reason = "undo"
	ReasonRedo  Reason = "redo"
	ReasonReset Reason = "reset"
)

// Change is delivered to OnChange listeners whenever the live value changes.
type Change struct {
	Value  adjust.AdjustmentSet
	Reason Reason
}

// Options configures a Controller.
type Options struct {
	// Window is the quiescence period before a live value is committed.
	// Default: 300ms
	Window time.Duration

	// Limit bounds the number of entries; the oldest are dropped first.
	// Zero means unbounded.
	Limit int

	Logger *slog.Logger
}

// DefaultOptions returns the defaults used when fields are left zero.
func DefaultOptions() Options {
	return Options{
		Window: 300 * time.Millisecond,
		Limit:  100,
	}
}

// Controller owns the history stack and the live value.
//
// Invariant: 0 <= cursor < len(entries).
type Controller struct {
	mu         sync.Mutex
	entries    []adjust.AdjustmentSet
	cursor     int
	live       adjust.AdjustmentSet
	pending    *adjust.AdjustmentSet
	pendingSeq uint64
	listeners  []func(Change)
	closed     bool

	window    time.Duration
	limit     int
	debouncer *debounce.Debouncer
	logger    *slog.Logger
}

// New creates a controller whose single entry, and live value, is initial.
func New(initial adjust.AdjustmentSet, opts Options) *Controller {
	if opts.Window <= 0 {
		opts.Window = DefaultOptions().Window
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		entries:   []adjust.AdjustmentSet{initial},
		live:      initial,
		window:    opts.Window,
		limit:     opts.Limit,
		debouncer: debounce.New(),
		logger:    opts.Logger,
	}
}

// OnChange registers fn to be called after every live value change. Calls
// happen outside the controller's lock, on the goroutine that caused the
// change.
func (c *Controller) OnChange(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetLive publishes v immediately and restarts the quiescence timer. When the
// timer fires without another SetLive, v becomes a history entry.
func (c *Controller) SetLive(v adjust.AdjustmentSet) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.live = v
	pending := v
	c.pending = &pending
	c.pendingSeq++
	seq := c.pendingSeq
	c.debouncer.Trigger(debounceKey, c.window, func() { c.commit(seq) })
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, Change{Value: v, Reason: ReasonLive})
}

func (c *Controller) commit(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Undo, Redo, Reset or a newer SetLive already dealt with this value.
	if c.pendingSeq != seq {
		return
	}
	c.commitPendingLocked()
}

// Flush commits any pending live value now. It reports whether an entry was
// pushed.
func (c *Controller) Flush() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commitPendingLocked()
}

func (c *Controller) commitPendingLocked() bool {
	c.debouncer.Cancel(debounceKey)
	if c.pending == nil {
		return false
	}
	v := *c.pending
	c.pending = nil
	c.pendingSeq++
	return c.pushLocked(v)
}

func (c *Controller) pushLocked(v adjust.AdjustmentSet) bool {
	if v.Equal(c.entries[c.cursor]) {
		return false
	}
	// Drop the redo tail.
	entries := make([]adjust.AdjustmentSet, 0, c.cursor+2)
	entries = append(entries, c.entries[:c.cursor+1]...)
	entries = append(entries, v)

	if c.limit > 0 && len(entries) > c.limit {
		entries = entries[len(entries)-c.limit:]
	}
	c.entries = entries
	c.cursor = len(entries) - 1

	c.logger.Debug("history entry committed",
		"entries", len(c.entries),
		"cursor", c.cursor)
	return true
}

// Undo commits any pending value, then steps back one entry. It reports
// whether the cursor moved.
func (c *Controller) Undo() bool {
	return c.move(-1, ReasonUndo)
}

// Redo steps forward one entry. Committing a pending value first clears the
// redo tail, so Redo after an uncommitted edit is a no-op.
func (c *Controller) Redo() bool {
	return c.move(1, ReasonRedo)
}

func (c *Controller) move(delta int, reason Reason) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.commitPendingLocked()

	next := c.cursor + delta
	if next < 0 || next >= len(c.entries) {
		c.mu.Unlock()
		return false
	}
	c.cursor = next
	c.live = c.entries[next]
	v := c.live
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Debug("history moved", "reason", string(reason), "cursor", next)
	notify(listeners, Change{Value: v, Reason: reason})
	return true
}

// Reset replaces the stack with the single entry v and discards any pending
// value. It is used when a different image is opened.
func (c *Controller) Reset(v adjust.AdjustmentSet) {
	c.mu.Lock()
	c.debouncer.Cancel(debounceKey)
	c.pending = nil
	c.pendingSeq++
	c.entries = []adjust.AdjustmentSet{v}
	c.cursor = 0
	c.live = v
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, Change{Value: v, Reason: ReasonReset})
}

// Live returns the value currently shown to the user.
func (c *Controller) Live() adjust.AdjustmentSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Committed returns the entry under the cursor.
func (c *Controller) Committed() adjust.AdjustmentSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[c.cursor]
}

// Pending reports whether a live value is waiting to be committed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// CanUndo reports whether Undo would move the cursor, counting a pending
// value as the entry it will become.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && !c.pending.Equal(c.entries[c.cursor]) {
		return true
	}
	return c.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && !c.pending.Equal(c.entries[c.cursor]) {
		return false
	}
	return c.cursor < len(c.entries)-1
}

// Len returns the number of entries.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cursor returns the index of the current entry.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Close commits any pending value and stops the quiescence timer. Later
// SetLive, Undo and Redo calls are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.commitPendingLocked()
	c.closed = true
	c.debouncer.Stop()
}

func (c *Controller) listenersLocked() []func(Change) {
	if len(c.listeners) == 0 {
		return nil
	}
	out := make([]func(Change), len(c.listeners))
	copy(out, c.listeners)
	return out
}

func notify(listeners []func(Change), ch Change) {
	for _, fn := range listeners {
		fn(ch)
	}
}
