// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/progress"
	"github.com/matt-FFFFFF/procgate/internal/retry"
	"github.com/matt-FFFFFF/procgate/internal/runner"
)

var (
	// ErrClosed is returned for tasks submitted after Close or Shutdown.
	ErrClosed = errors.New("engine is closed")
	// ErrInvalidConcurrency is returned by Reconfigure for a limit below one.
	ErrInvalidConcurrency = errors.New("max concurrency must be at least 1")

	errCancelAll = fmt.Errorf("%w: all tasks cancelled", runner.ErrCancelled)
	errShutdown  = fmt.Errorf("%w: %w", runner.ErrCancelled, ErrClosed)
)

// processCounter is implemented by executors that track live processes.
type processCounter interface {
	Running() int
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Running        int // Occupied slots, including tasks waiting for a retry.
	Queued         int // Tasks waiting for a slot.
	MaxConcurrency int // Current limit.
	Processes      int // Live operating system processes.
}

// Engine schedules tasks under a concurrency limit.
type Engine struct {
	cfg      *config.Config
	exec     retry.Executor
	reporter progress.Reporter
	policy   *retry.Policy

	mu        sync.Mutex
	limit     int
	running   int
	pending   *list.List
	closed    bool
	gen       context.Context //nolint:containedctx
	cancelGen context.CancelCauseFunc

	wg sync.WaitGroup
}

// New creates an Engine from cfg. A nil cfg selects config.Default.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg.Clone(),
		limit:   cfg.MaxConcurrency,
		pending: list.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.exec == nil {
		e.exec = runner.New()
	}

	if e.policy == nil {
		e.policy = &retry.Policy{Base: cfg.BackoffBase(), Max: cfg.BackoffMax()}
	}

	e.gen, e.cancelGen = context.WithCancelCause(context.Background())

	return e, nil
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()

	c := e.cfg.Clone()
	c.MaxConcurrency = e.limit

	return c
}

// Submit queues cmd and returns immediately. Unset timeout and retries are
// taken from the configuration. Cancelling ctx while the task is queued
// removes it without spawning a process; cancelling it later terminates the
// running process and stops retries.
func (e *Engine) Submit(ctx context.Context, cmd runner.Command) *Task {
	cmd = cmd.WithTimeout(cmd.TimeoutOr(e.cfg.Timeout()))
	retries := cmd.RetriesOr(e.cfg.RetryAttempts)
	cmd = cmd.WithRetries(retries)

	t := newTask(ctx, progress.LabelFrom(ctx), cmd, retries)
	t.ctx = progress.NewContext(ctxlog.New(ctx, ctxlog.Logger(ctx).With(ctxlog.TaskKey, t.label)), e.reporter, t.id, t.label)

	progress.Emit(t.ctx, progress.Event{Type: progress.EventQueued})

	t.stopWatch = context.AfterFunc(ctx, func() {
		e.dequeue(t)
	})

	e.mu.Lock()

	var rejected error

	switch {
	case e.closed:
		rejected = ErrClosed
	case ctx.Err() != nil:
		rejected = runner.Cancelled(ctx)
	default:
		t.elem = e.pending.PushBack(t)
		e.dispatchLocked()
	}

	if rejected != nil {
		t.resolve(nil, rejected, stateFor(rejected))
	}

	e.mu.Unlock()

	if rejected != nil {
		t.stopWatch()
		e.emitFinal(t, rejected, 0)
	}

	return t
}

// Run submits cmd and waits for its outcome.
func (e *Engine) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	return e.Submit(ctx, cmd).Wait()
}

// Stats returns a consistent snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		Running:        e.running,
		Queued:         e.pending.Len(),
		MaxConcurrency: e.limit,
	}
	e.mu.Unlock()

	if pc, ok := e.exec.(processCounter); ok {
		s.Processes = pc.Running()
	}

	return s
}

// Reconfigure changes the concurrency limit. Raising it admits queued tasks
// at once; lowering it lets running tasks finish and admits no more until
// the running count is below the new limit.
func (e *Engine) Reconfigure(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.limit = n
	e.dispatchLocked()

	return nil
}

// CancelAll rejects every queued task and cancels every running task. The
// engine keeps accepting new work.
func (e *Engine) CancelAll() {
	e.cancelAll(errCancelAll, true)
}

// Close stops accepting tasks, cancels all work and waits for every slot to
// be released.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancelAll(errShutdown, false)
	e.wg.Wait()
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. If ctx is done first the remaining work is cancelled as by Close
// and ctx.Err is returned.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	drained := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		e.cancelAll(errShutdown, false)
		return nil
	case <-ctx.Done():
		e.Close()
		<-drained

		return ctx.Err()
	}
}

func (e *Engine) cancelAll(cause error, renew bool) {
	e.mu.Lock()

	rejected := make([]*Task, 0, e.pending.Len())

	for el := e.pending.Front(); el != nil; el = el.Next() {
		t := el.Value.(*Task) //nolint:forcetypeassert
		t.elem = nil
		t.resolve(nil, cause, StateCancelled)
		rejected = append(rejected, t)
	}

	e.pending.Init()
	e.cancelGen(cause)

	if renew {
		e.gen, e.cancelGen = context.WithCancelCause(context.Background())
	}

	e.mu.Unlock()

	for _, t := range rejected {
		t.stopWatch()
		e.emitFinal(t, cause, 0)
	}
}

// dequeue removes t from the queue after its context was cancelled.
// It does nothing once t has been admitted.
func (e *Engine) dequeue(t *Task) {
	e.mu.Lock()

	if t.elem == nil {
		e.mu.Unlock()
		return
	}

	e.pending.Remove(t.elem)
	t.elem = nil

	err := runner.Cancelled(t.ctx)
	t.resolve(nil, err, StateCancelled)
	e.mu.Unlock()

	ctxlog.Debug(t.ctx, "queued task cancelled")
	e.emitFinal(t, err, 0)
}

// dispatchLocked admits queued tasks in FIFO order while slots are free.
// The caller must hold e.mu.
func (e *Engine) dispatchLocked() {
	for e.running < e.limit && e.pending.Len() > 0 {
		t := e.pending.Remove(e.pending.Front()).(*Task) //nolint:forcetypeassert
		t.elem = nil
		e.running++
		e.wg.Add(1)

		go e.runSlot(t, e.gen)
	}
}

// runSlot executes t while holding one slot. gen is the cancellation
// generation the task was admitted under.
func (e *Engine) runSlot(t *Task, gen context.Context) {
	defer e.wg.Done()

	t.stopWatch()

	ctx, cancel := context.WithCancelCause(t.ctx)
	defer cancel(nil)

	stop := context.AfterFunc(gen, func() {
		cancel(context.Cause(gen))
	})
	defer stop()

	start := time.Now()
	ctrl := retry.New(&attemptExecutor{task: t, exec: e.exec}, *e.policy)

	res, err := ctrl.Run(ctx, t.cmd, t.retries, func(a retry.Attempt) {
		t.setState(StateRetrying)
		progress.Emit(ctx, progress.Event{
			Type: progress.EventRetrying,
			Data: progress.EventData{Attempt: a.Number, Delay: a.Delay, Err: a.Err},
		})
	})

	elapsed := time.Since(start)

	e.mu.Lock()
	e.running--
	t.resolve(res, err, stateFor(err))
	e.dispatchLocked()
	e.mu.Unlock()

	e.emitFinal(t, err, elapsed)
}

func (e *Engine) emitFinal(t *Task, err error, elapsed time.Duration) {
	ev := progress.Event{
		Type: progress.EventSucceeded,
		Data: progress.EventData{Duration: elapsed, Err: err},
	}

	switch stateFor(err) {
	case StateCancelled:
		ev.Type = progress.EventCancelled
	case StateFailed:
		ev.Type = progress.EventFailed
		ctxlog.Info(t.ctx, "task failed", "error", err)
	default:
	}

	progress.Emit(t.ctx, ev)
}

// attemptExecutor records each attempt on the task before delegating.
type attemptExecutor struct {
	task *Task
	exec retry.Executor
}

func (a *attemptExecutor) Execute(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	n := a.task.beginAttempt()
	progress.Emit(ctx, progress.Event{
		Type: progress.EventStarted,
		Data: progress.EventData{Attempt: n},
	})

	return a.exec.Execute(ctx, cmd)
}

func isCancelled(err error) bool {
	return errors.Is(err, runner.ErrCancelled)
}
