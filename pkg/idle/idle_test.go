package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleRunsOnce(t *testing.T) {
	q := NewQueue()
	calls := 0
	q.Idle("a", func() { calls++ })
	assert.Equal(t, 1, q.Run())
	assert.Equal(t, 0, q.Run())
	assert.Equal(t, 1, calls)
}

func TestIdleWhenWaitsForPredicate(t *testing.T) {
	q := NewQueue()
	ready := false
	calls := 0
	q.IdleWhen("tex", func() { calls++ }, func() bool { return ready })

	q.Run()
	q.Run()
	assert.Equal(t, 0, calls)
	assert.True(t, q.Queued("tex"))

	ready = true
	q.Run()
	q.Run()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, q.Len())
}

func TestSkipDiscardsDestroyedOwner(t *testing.T) {
	q := NewQueue()
	destroyed := false
	calls := 0
	q.Add(Task{Name: "refresh", Func: func() { calls++ }, Skip: func() bool { return destroyed }})
	destroyed = true
	q.Run()
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, q.Len())
}

func TestDropIfQueuedCoalesces(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		q.Add(Task{Name: "shader", Func: func() { got = append(got, i) }, DropIfQueued: true})
	}
	q.Run()
	assert.Equal(t, []int{2}, got)
}

func TestTasksQueuedDuringRunWaitForNextCycle(t *testing.T) {
	q := NewQueue()
	var order []string
	q.Idle("outer", func() {
		order = append(order, "outer")
		q.Idle("inner", func() { order = append(order, "inner") })
	})
	q.Run()
	assert.Equal(t, []string{"outer"}, order)
	q.Run()
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestPanickingTaskIsContained(t *testing.T) {
	q := NewQueue()
	calls := 0
	q.Idle("bad", func() { panic("boom") })
	q.Idle("good", func() { calls++ })
	q.Run()
	assert.Equal(t, 1, calls)
}

func TestTimeout(t *testing.T) {
	q := NewQueue()
	now := time.Unix(0, 0)
	q.now = func() time.Time { return now }
	calls := 0
	q.Add(Task{Name: "slow", Func: func() { calls++ }, When: func() bool { return false }, Timeout: time.Second})
	now = now.Add(2 * time.Second)
	q.Run()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, calls)
}

func TestCancelAndFlush(t *testing.T) {
	q := NewQueue()
	calls := 0
	q.Idle("a", func() { calls++ })
	q.Idle("b", func() { calls++ })
	assert.True(t, q.Cancel("a"))
	assert.False(t, q.Cancel("a"))
	q.IdleWhen("never", func() { calls++ }, func() bool { return false })
	q.Flush(10)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, q.Len())
}
