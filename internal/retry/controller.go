// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/runner"
)

// Executor runs a single attempt of a command.
// *runner.Runner implements it.
type Executor interface {
	Execute(ctx context.Context, cmd runner.Command) (*runner.Result, error)
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int           // 1-indexed number of the failed attempt.
	Err    error         // Why it failed.
	Delay  time.Duration // Wait before the next attempt.
}

// sleep waits for d or until ctx is done. Tests replace it to record delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller applies a Policy around an Executor.
type Controller struct {
	exec   Executor
	policy Policy
}

// New creates a Controller.
func New(exec Executor, policy Policy) *Controller {
	return &Controller{
		exec:   exec,
		policy: policy,
	}
}

// Policy returns the backoff policy in use.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Run executes cmd up to retries+1 times.
//
// On success the Result's RetryCount is the number of failed attempts. A
// cancelled context stops the loop at once, including during a backoff wait,
// and the returned error matches runner.ErrCancelled. Failures that cannot be
// retried are returned unchanged. When every attempt fails the error is a
// *RetriesExhaustedError. notify, if not nil, is called before each wait.
func (c *Controller) Run(ctx context.Context, cmd runner.Command, retries int, notify func(Attempt)) (*runner.Result, error) {
	retries = max(retries, 0)
	history := make([]error, 0, retries+1)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, runner.Cancelled(ctx)
		}

		res, err := c.exec.Execute(ctx, cmd)
		if err == nil {
			res.RetryCount = attempt - 1
			return res, nil
		}

		if ctx.Err() != nil {
			return nil, runner.Cancelled(ctx)
		}

		if !runner.Retryable(err) || fatal(err) {
			return nil, err
		}

		history = append(history, err)

		if attempt > retries {
			return nil, &RetriesExhaustedError{
				Attempts: attempt,
				Err:      err,
				History:  history,
			}
		}

		delay := c.policy.Delay(attempt)

		ctxlog.Debug(ctx, "attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		if notify != nil {
			notify(Attempt{Number: attempt, Err: err, Delay: delay})
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, runner.Cancelled(ctx)
		}
	}
}

// fatal reports spawn failures that another attempt cannot fix: the
// executable was not found on PATH.
func fatal(err error) bool {
	return errors.Is(err, runner.ErrSpawn) && errors.Is(err, exec.ErrNotFound)
}
