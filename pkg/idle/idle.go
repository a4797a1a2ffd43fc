// Package idle implements the deferred task queue which is processed once
// per frame on the render thread. Nothing blocks: a task whose readiness
// predicate is false stays queued and is polled again on the next cycle.
package idle

import (
	"fmt"
	"time"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
)

// Task is a unit of deferred work.
type Task struct {
	// Name identifies the task. Unnamed tasks can never be coalesced or
	// cancelled by name.
	Name string

	// Func is the work to run. It runs at most once.
	Func func()

	// When, if set, must return true before Func runs.
	When func() bool

	// Skip, if set and returning true, discards the task without running
	// it. Owners use it to drop callbacks queued before they were
	// destroyed.
	Skip func() bool

	// DropIfQueued replaces any queued task with the same name.
	DropIfQueued bool

	// Timeout, if non-zero, discards the task if it has not run within
	// this duration of being queued.
	Timeout time.Duration

	queued time.Time
}

// Queue is a FIFO of deferred tasks.
type Queue struct {
	tasks []*Task
	now   func() time.Time
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// Idle queues fn to run on the next cycle.
func (q *Queue) Idle(name string, fn func()) {
	q.Add(Task{Name: name, Func: fn})
}

// IdleWhen queues fn to run on the first cycle on which pred returns
// true.
func (q *Queue) IdleWhen(name string, fn func(), pred func() bool) {
	q.Add(Task{Name: name, Func: fn, When: pred})
}

// Add queues a task.
func (q *Queue) Add(t Task) {
	if t.Func == nil {
		return
	}
	if t.Name != "" && t.DropIfQueued {
		q.Cancel(t.Name)
	}
	t.queued = q.now()
	q.tasks = append(q.tasks, &t)
}

// Cancel removes every queued task called name. It reports whether any
// task was removed.
func (q *Queue) Cancel(name string) bool {
	kept := q.tasks[:0]
	removed := false
	for _, t := range q.tasks {
		if t.Name == name {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	q.tasks = kept
	return removed
}

// Queued reports whether a task called name is queued.
func (q *Queue) Queued(name string) bool {
	for _, t := range q.tasks {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int { return len(q.tasks) }

// Run performs one idle cycle: every task queued before the call whose
// predicate holds is run, in queue order. Tasks queued by running tasks
// wait for the next cycle. A panicking task is logged and discarded. Run
// returns the number of tasks executed.
func (q *Queue) Run() int {
	pending := q.tasks
	q.tasks = nil
	ran := 0
	var waiting []*Task

	for _, t := range pending {
		if t.Skip != nil && t.Skip() {
			continue
		}
		if t.Timeout > 0 && q.now().Sub(t.queued) > t.Timeout {
			logx.Logger().Warn("idle task timed out", "task", t.Name)
			continue
		}
		if t.When != nil && !t.When() {
			waiting = append(waiting, t)
			continue
		}
		if err := q.run(t); err != nil {
			logx.Logger().Warn("idle task failed", "task", t.Name, "error", err)
		}
		ran++
	}
	q.tasks = append(waiting, q.tasks...)
	return ran
}

// Flush runs cycles until the queue is empty or no task can make
// progress, up to maxCycles.
func (q *Queue) Flush(maxCycles int) {
	for i := 0; i < maxCycles && len(q.tasks) > 0; i++ {
		if q.Run() == 0 && !q.anySkippable() {
			return
		}
	}
}

func (q *Queue) anySkippable() bool {
	for _, t := range q.tasks {
		if (t.Skip != nil && t.Skip()) || (t.When != nil && t.When()) {
			return true
		}
	}
	return false
}

func (q *Queue) run(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	t.Func()
	return nil
}
