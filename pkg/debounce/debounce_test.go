package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_LastCallWins(t *testing.T) {
	d := New()
	defer d.Stop()

	var last atomic.Int64
	var runs atomic.Int32
	for i := 1; i <= 5; i++ {
		v := int64(i)
		d.Trigger("k", 30*time.Millisecond, func() {
			last.Store(v)
			runs.Add(1)
		})
	}

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(5), last.Load())

	// Nothing else fires later.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending("k"))
}

func TestKeysAreIndependent(t *testing.T) {
	d := New()
	defer d.Stop()

	var a, b atomic.Int32
	d.Trigger("a", 10*time.Millisecond, func() { a.Add(1) })
	d.Trigger("b", 10*time.Millisecond, func() { b.Add(1) })

	require.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFlush_RunsSynchronously(t *testing.T) {
	d := New()
	defer d.Stop()

	var runs atomic.Int32
	d.Trigger("k", time.Hour, func() { runs.Add(1) })
	assert.True(t, d.Pending("k"))

	assert.True(t, d.Flush("k"))
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending("k"))
	assert.False(t, d.Flush("k"))
}

func TestCancel(t *testing.T) {
	d := New()
	defer d.Stop()

	var runs atomic.Int32
	d.Trigger("k", 10*time.Millisecond, func() { runs.Add(1) })
	assert.True(t, d.Cancel("k"))
	assert.False(t, d.Cancel("k"))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestStop_IgnoresLaterTriggers(t *testing.T) {
	d := New()
	var runs atomic.Int32
	d.Trigger("k", 10*time.Millisecond, func() { runs.Add(1) })
	d.Stop()
	d.Trigger("k", 10*time.Millisecond, func() { runs.Add(1) })

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
	assert.False(t, d.Pending("k"))
}
