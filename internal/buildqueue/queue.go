// SPDX-License-Identifier: MPL-2.0

// Package buildqueue runs build tasks strictly one at a time, in submission
// order, no matter how many goroutines submit them.
//
// The queue has two states. While Idle, the first caller to Enqueue becomes
// the drainer: it runs its own task, then every task linked behind it while it
// was running, until nothing is left. Callers that enqueue while the queue is
// Draining are linked onto the tail and block until their own task has run.
// Each submitter receives its own task's outcome, never a sibling's.
package buildqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
)

// ErrTaskPanicked is the sentinel error wrapped by TaskPanicError.
var ErrTaskPanicked = errors.New("build task panicked")

type (
	// Task is a unit of work run by the queue.
	Task func(ctx context.Context) error

	// TaskPanicError reports a task that panicked. The queue recovers the
	// panic, keeps draining, and hands this error to the task's submitter.
	TaskPanicError struct {
		Value any
		Stack []byte
	}

	// Queue is a FIFO execution chain that guarantees at most one task runs at
	// a time. The zero value is ready to use. A Queue must not be copied.
	Queue struct {
		mu       sync.Mutex
		pending  []*entry
		draining bool
	}

	// entry is one submitted task. done is closed exactly once, after err is set.
	entry struct {
		ctx  context.Context
		task Task
		err  error
		done chan struct{}
	}
)

// New creates an idle Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue submits task and blocks until it has run, returning the task's own
// error. If ctx is cancelled while the task is still queued, the task is
// removed and Enqueue returns the context error. Once the task has started,
// Enqueue always waits for it.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	e := &entry{ctx: ctx, task: task, done: make(chan struct{})}

	q.mu.Lock()
	if q.draining {
		q.pending = append(q.pending, e)
		q.mu.Unlock()

		select {
		case <-e.done:
			return e.err
		case <-ctx.Done():
			if q.unlink(e) {
				return ctx.Err()
			}
			// Already started; the submitter still gets the task's outcome.
			<-e.done
			return e.err
		}
	}
	q.draining = true
	q.mu.Unlock()

	q.drain(e)
	return e.err
}

// unlink removes e from the pending chain. It reports false when e has
// already been taken by the drainer.
func (q *Queue) unlink(e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, queued := range q.pending {
		if queued == e {
			q.pending = slices.Delete(q.pending, i, i+1)
			return true
		}
	}
	return false
}

// Len reports how many tasks are linked and waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Draining reports whether a chain is currently being executed.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// drain runs first and then every linked entry. The emptiness check and the
// transition back to Idle happen under one lock acquisition, so an entry
// linked concurrently is either seen here or finds the queue Idle and drains
// it itself.
func (q *Queue) drain(first *entry) {
	next := first
	for next != nil {
		next.run()

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			next = nil
		} else {
			next = q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
		}
		q.mu.Unlock()
	}
}

// run executes the entry's task and always marks it done, even on panic.
func (e *entry) run() {
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			e.err = &TaskPanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if err := e.ctx.Err(); err != nil {
		e.err = err
		return
	}
	e.err = e.task(e.ctx)
}

// Error implements the error interface.
func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTaskPanicked, e.Value)
}

// Unwrap returns ErrTaskPanicked for errors.Is() compatibility.
func (e *TaskPanicError) Unwrap() error { return ErrTaskPanicked }
