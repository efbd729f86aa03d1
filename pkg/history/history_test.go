package history

import (
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/photo_edit_session/pkg/adjust"
)

func withExposure(t *testing.T, base adjust.AdjustmentSet, v float64) adjust.AdjustmentSet {
	t.Helper()
	out, err := base.SetScalar(adjust.Exposure, v)
	require.NoError(t, err)
	return out
}

// commitN pushes n distinct entries without waiting for the timer.
func commitN(t *testing.T, c *Controller, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		c.SetLive(withExposure(t, c.Live(), float64(i)*0.1))
		require.True(t, c.Flush())
	}
}

func TestRapidEditsCoalesce(t *testing.T) {
	initial := adjust.New()
	c := New(initial, Options{Window: 40 * time.Millisecond})
	defer c.Close()

	for i := 0; i < 3; i++ {
		c.SetLive(withExposure(t, initial, 1.0))
	}
	assert.Equal(t, 1.0, c.Live().Exposure)
	assert.Equal(t, 1, c.Len())

	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, c.Committed().Exposure)

	// Nothing further is committed once the burst is over.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, c.Len())

	require.True(t, c.Undo())
	assert.Equal(t, 0.0, c.Live().Exposure)
	assert.False(t, c.CanUndo())
}

func TestIntermediateValuesAreNotCommitted(t *testing.T) {
	initial := adjust.New()
	c := New(initial, Options{Window: 40 * time.Millisecond})
	defer c.Close()

	for _, v := range []float64{0.2, 0.4, 0.6, 0.8} {
		c.SetLive(withExposure(t, initial, v))
	}
	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.8, c.Committed().Exposure)
}

func TestUndoPastStart(t *testing.T) {
	initial := adjust.New()
	c := New(initial, Options{Window: time.Hour})
	defer c.Close()

	const n = 6
	commitN(t, c, n)
	assert.Equal(t, n+1, c.Len())

	moved := 0
	for i := 0; i < n+5; i++ {
		if c.Undo() {
			moved++
		}
	}
	assert.Equal(t, n, moved)
	assert.True(t, c.Live().Equal(initial))
	assert.False(t, c.CanUndo())
	assert.True(t, c.CanRedo())
}

func TestRedoTruncation(t *testing.T) {
	c := New(adjust.New(), Options{Window: time.Hour})
	defer c.Close()

	commitN(t, c, 2)
	require.True(t, c.Undo())
	assert.True(t, c.CanRedo())
	redoable := c.entries[2]

	c.SetLive(withExposure(t, c.Live(), 3))
	require.True(t, c.Flush())

	assert.False(t, c.CanRedo())
	assert.False(t, c.Redo())
	for _, e := range c.entries {
		assert.False(t, e.Equal(redoable))
	}
}

func TestUndoFlushesPendingEdit(t *testing.T) {
	initial := adjust.New()
	c := New(initial, Options{Window: 30 * time.Millisecond})
	defer c.Close()

	edited := withExposure(t, initial, 2)
	c.SetLive(edited)
	assert.True(t, c.CanUndo())

	// The pending edit is committed, then undone.
	require.True(t, c.Undo())
	assert.True(t, c.Live().Equal(initial))
	assert.Equal(t, 2, c.Len())

	// The stopped timer must not commit anything over the rewound state.
	time.Sleep(80 * time.Millisecond)
	assert.True(t, c.Live().Equal(initial))
	assert.Equal(t, 0, c.Cursor())

	require.True(t, c.Redo())
	assert.True(t, c.Live().Equal(edited))
}

func TestEqualValueIsNotPushed(t *testing.T) {
	initial := adjust.New()
	c := New(initial, Options{Window: time.Hour})
	defer c.Close()

	c.SetLive(initial.Clone())
	assert.False(t, c.Flush())
	assert.Equal(t, 1, c.Len())
	assert.False(t, c.CanUndo())
}

func TestLimitDropsOldest(t *testing.T) {
	c := New(adjust.New(), Options{Window: time.Hour, Limit: 3})
	defer c.Close()

	commitN(t, c, 5)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 2, c.Cursor())

	for c.Undo() {
	}
	assert.InDelta(t, 0.3, c.Live().Exposure, 1e-9)
}

func TestReset(t *testing.T) {
	c := New(adjust.New(), Options{Window: time.Hour})
	defer c.Close()

	commitN(t, c, 3)
	c.SetLive(withExposure(t, c.Live(), 4))

	next := withExposure(t, adjust.New(), -1)
	c.Reset(next)
	assert.Equal(t, 1, c.Len())
	assert.False(t, c.Pending())
	assert.True(t, c.Live().Equal(next))
	assert.False(t, c.CanUndo())
	assert.False(t, c.CanRedo())
}

func TestOnChange(t *testing.T) {
	c := New(adjust.New(), Options{Window: time.Hour})
	defer c.Close()

	var mu sync.Mutex
	var reasons []Reason
	c.OnChange(func(ch Change) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, ch.Reason)
	})

	c.SetLive(withExposure(t, c.Live(), 1))
	c.Undo()
	c.Redo()
	c.Undo()
	c.Undo() // boundary, no notification
	c.Reset(adjust.New())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Reason{ReasonLive, ReasonUndo, ReasonRedo, ReasonUndo, ReasonReset}, reasons)
}

func TestClose_CommitsPendingAndIgnoresLaterEdits(t *testing.T) {
	c := New(adjust.New(), Options{Window: time.Hour})
	c.SetLive(withExposure(t, c.Live(), 1))
	c.Close()
	assert.Equal(t, 2, c.Len())

	c.SetLive(withExposure(t, c.Live(), 2))
	assert.Equal(t, 1.0, c.Live().Exposure)
	assert.False(t, c.Undo())
}

func TestHistoryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("undoing past the start returns the initial state", prop.ForAll(
		func(n int) bool {
			initial := adjust.New()
			c := New(initial, Options{Window: time.Hour})
			defer c.Close()
			for i := 1; i <= n; i++ {
				next, err := c.Live().SetScalar(adjust.Contrast, float64(i))
				if err != nil {
					return false
				}
				c.SetLive(next)
				c.Flush()
			}
			for i := 0; i < n+5; i++ {
				c.Undo()
			}
			return c.Live().Equal(initial) && !c.CanUndo()
		},
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}
