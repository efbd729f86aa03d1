package ai

import (
	"sort"
	"sync"
	"time"
)

// pendingTTL bounds how long an abandoned entry is remembered.
const pendingTTL = 10 * time.Minute

// PendingOperation represents an in-flight prediction
type PendingOperation struct {
	PredictionID string
	Operation    string
	Model        string
	StartTime    time.Time
}

// Elapsed returns how long the operation has been running.
func (p PendingOperation) Elapsed() time.Duration {
	return time.Since(p.StartTime)
}

// PendingTracker tracks in-flight predictions. Entries older than
// pendingTTL are swept on every write, so no background goroutine is needed.
type PendingTracker struct {
	operations map[string]PendingOperation
	mu         sync.RWMutex
	now        func() time.Time
}

// NewPendingTracker creates an empty tracker
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{
		operations: make(map[string]PendingOperation),
		now:        time.Now,
	}
}

// Add stores a new pending operation
func (pt *PendingTracker) Add(op PendingOperation) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.sweepLocked()
	pt.operations[op.PredictionID] = op
}

// Get retrieves a pending operation by prediction ID
func (pt *PendingTracker) Get(predictionID string) (PendingOperation, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	op, exists := pt.operations[predictionID]
	return op, exists
}

// Remove deletes a pending operation
func (pt *PendingTracker) Remove(predictionID string) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	delete(pt.operations, predictionID)
	pt.sweepLocked()
}

// List returns the pending operations, oldest first.
func (pt *PendingTracker) List() []PendingOperation {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	out := make([]PendingOperation, 0, len(pt.operations))
	for _, op := range pt.operations {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Len returns the number of pending operations.
func (pt *PendingTracker) Len() int {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	return len(pt.operations)
}

func (pt *PendingTracker) sweepLocked() {
	now := pt.now()
	for id, op := range pt.operations {
		if now.Sub(op.StartTime) > pendingTTL {
			delete(pt.operations, id)
		}
	}
}

// EstimateRemainingTime estimates remaining seconds based on operation type
func EstimateRemainingTime(operation string, elapsed time.Duration) int {
	// Typical operation times (in seconds)
	typicalTimes := map[string]int{
		OpGenerateMask:      15,
		OpGenerativeReplace: 35,
		OpQuickErase:        20,
	}

	typical, ok := typicalTimes[operation]
	if !ok {
		typical = 30
	}

	remaining := typical - int(elapsed.Seconds())
	if remaining < 5 {
		remaining = 5
	}
	if remaining > 60 {
		remaining = 60
	}
	return remaining
}
