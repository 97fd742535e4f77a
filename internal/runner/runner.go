// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/linewriter"
	"github.com/matt-FFFFFF/procgate/internal/progress"
)

const (
	// maxBufferSize is the maximum number of bytes kept per output stream.
	maxBufferSize = 8 * 1024 * 1024
	// waitDelay bounds how long Wait blocks on output pipes after the process exits.
	waitDelay = 2 * time.Second
)

// Runner executes commands and tracks the processes it has running.
// A Runner is safe for concurrent use.
type Runner struct {
	mu      sync.Mutex
	running map[int]*os.Process
	spawned atomic.Uint64
}

// New creates a Runner with an empty running set.
func New() *Runner {
	return &Runner{
		running: make(map[int]*os.Process),
	}
}

// Execute runs cmd once and waits for it to finish.
//
// A zero cmd.Timeout means no timeout is applied here; the engine resolves
// defaults before calling Execute. On failure the returned error matches one
// of ErrSpawn, ErrTimeout, ErrProcessFailed or ErrCancelled.
func (r *Runner) Execute(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Args) == 0 {
		return nil, errors.Join(ErrSpawn, ErrNoArgs)
	}

	if ctx.Err() != nil {
		return nil, Cancelled(ctx)
	}

	logger := ctxlog.Logger(ctx).With("command", cmd.Args[0])

	stdout := linewriter.New(maxBufferSize, func(line string) {
		progress.Emit(ctx, progress.Event{
			Type: progress.EventOutput,
			Data: progress.EventData{OutputLine: line},
		})
	})
	stderr := linewriter.New(maxBufferSize, func(line string) {
		progress.Emit(ctx, progress.Event{
			Type: progress.EventOutput,
			Data: progress.EventData{OutputLine: line, IsStderr: true},
		})
	})

	c := exec.Command(cmd.Args[0], cmd.Args[1:]...) //nolint:gosec
	c.Dir = cmd.Cwd
	c.Env = environ(cmd.Env)
	c.Stdout = stdout
	c.Stderr = stderr
	c.WaitDelay = waitDelay
	setProcessGroup(c)

	start := time.Now()

	if err := c.Start(); err != nil {
		logger.Debug("process start failed", "error", err)
		return nil, errors.Join(ErrSpawn, err)
	}

	r.track(c.Process)

	logger.Debug("process started", "pid", c.Process.Pid)

	waitCh := make(chan error, 1)

	// Leave the running set as soon as Wait reaps the process, before
	// the result is handed back.
	go func() {
		err := c.Wait()
		r.untrack(c.Process)
		waitCh <- err
	}()

	var timeoutC <-chan time.Time

	if cmd.Timeout > 0 {
		timer := time.NewTimer(cmd.Timeout)
		defer timer.Stop()

		timeoutC = timer.C
	}

	var (
		waitErr  error
		killedBy error
	)

	select {
	case waitErr = <-waitCh:
	case <-timeoutC:
		logger.Info("process timed out, killing", "pid", c.Process.Pid, "timeout", cmd.Timeout)
		killedBy = fmt.Errorf("%w after %s", ErrTimeout, cmd.Timeout)
		terminate(c.Process)

		<-waitCh
	case <-ctx.Done():
		logger.Info("execution cancelled, killing", "pid", c.Process.Pid)
		killedBy = Cancelled(ctx)
		terminate(c.Process)

		<-waitCh
	}

	duration := time.Since(start)

	if killedBy != nil {
		return nil, killedBy
	}

	for _, w := range []*linewriter.Writer{stdout, stderr} {
		if err := w.Err(); err != nil {
			logger.Warn("process output truncated", "limit", maxBufferSize)
		}
	}

	res := &Result{
		Stdout:   trim(stdout.String()),
		Stderr:   trim(stderr.String()),
		Duration: duration,
	}

	switch {
	case waitErr == nil, errors.Is(waitErr, exec.ErrWaitDelay):
		// ErrWaitDelay is only returned after a successful exit whose pipes
		// were held open by a descendant.
		logger.Debug("process finished", "pid", c.Process.Pid, "duration", duration)
		return res, nil
	default:
		code := -1
		if c.ProcessState != nil {
			code = c.ProcessState.ExitCode()
		}

		logger.Debug("process failed", "pid", c.Process.Pid, "exitCode", code)

		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			waitErr = nil
		}

		return nil, &ProcessFailedError{
			ExitCode: code,
			Stderr:   res.Stderr,
			Err:      waitErr,
		}
	}
}

// Running returns the number of live processes started by r.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.running)
}

// Spawned returns the number of processes r has successfully started.
func (r *Runner) Spawned() uint64 {
	return r.spawned.Load()
}

// TerminateAll kills every live process and its process group.
// It returns the number of processes signalled. Callers should cancel the
// contexts of in-flight executions first so the kills are reported as
// cancellations rather than failures.
func (r *Runner) TerminateAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Signal under the lock: untrack cannot complete while the set is read.
	for _, p := range r.running {
		terminate(p)
	}

	return len(r.running)
}

func (r *Runner) track(p *os.Process) {
	r.spawned.Add(1)
	r.mu.Lock()
	r.running[p.Pid] = p
	r.mu.Unlock()
}

func (r *Runner) untrack(p *os.Process) {
	r.mu.Lock()
	delete(r.running, p.Pid)
	r.mu.Unlock()
}

// environ returns nil when extra is empty so the child inherits the parent
// environment unchanged.
func environ(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}

	return env
}

func trim(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
