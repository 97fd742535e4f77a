// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/matt-FFFFFF/procgate/internal/runner"
)

// State is the lifecycle state of a Task.
type State int

// Task states. A task moves Pending → Running and then either to a terminal
// state or, after a failed attempt, to Retrying and back to Running.
const (
	StatePending State = iota
	StateRunning
	StateRetrying
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateRetrying:
		return "Retrying"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Task is a single submitted command. Its result is available from Wait
// once Done is closed.
type Task struct {
	id      string
	label   string
	cmd     runner.Command
	retries int
	ctx     context.Context //nolint:containedctx

	// elem is the position in the pending queue, guarded by the engine mutex.
	elem *list.Element
	// stopWatch stops the queue-cancellation watcher on ctx.
	stopWatch func() bool

	mu       sync.Mutex
	state    State
	attempts int

	once   sync.Once
	done   chan struct{}
	result *runner.Result
	err    error
}

func newTask(ctx context.Context, label string, cmd runner.Command, retries int) *Task {
	id := uuid.NewString()
	if label == "" {
		label = cmd.String()
	}

	return &Task{
		id:      id,
		label:   label,
		cmd:     cmd,
		retries: retries,
		ctx:     ctx,
		done:    make(chan struct{}),
	}
}

// ID returns the unique task id.
func (t *Task) ID() string {
	return t.id
}

// Label returns the display label of the task.
func (t *Task) Label() string {
	return t.label
}

// Command returns the command with the engine defaults applied.
func (t *Task) Command() runner.Command {
	return t.cmd
}

// Retries returns the retry budget of the task.
func (t *Task) Retries() int {
	return t.retries
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Attempts returns the number of executions started so far.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.attempts
}

// Done is closed when the task has been resolved.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task is resolved and returns its outcome.
func (t *Task) Wait() (*runner.Result, error) {
	<-t.done
	return t.result, t.err
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Task) beginAttempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts++
	t.state = StateRunning

	return t.attempts
}

// resolve settles the task exactly once. Later calls are ignored and
// return false.
func (t *Task) resolve(res *runner.Result, err error, s State) bool {
	resolved := false

	t.once.Do(func() {
		t.mu.Lock()
		t.state = s
		t.mu.Unlock()

		t.result = res
		t.err = err
		resolved = true

		close(t.done)
	})

	return resolved
}

// stateFor classifies a final error.
func stateFor(err error) State {
	switch {
	case err == nil:
		return StateSucceeded
	case isCancelled(err):
		return StateCancelled
	default:
		return StateFailed
	}
}
