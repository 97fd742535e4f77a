// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/progress"
	"github.com/matt-FFFFFF/procgate/internal/runner"
)

var (
	// ErrEmptyID is returned when an item has no id.
	ErrEmptyID = errors.New("batch item id must not be empty")
	// ErrDuplicateID is returned when two items share an id.
	ErrDuplicateID = errors.New("duplicate batch item id")
)

// Item is one command of a batch.
type Item struct {
	ID      string
	Command runner.Command
}

// Outcome is the settled result of one item. Result is never nil: a failed
// item carries a record with empty stdout, the error message as stderr, zero
// duration and the configured retry count, and Err holds the error itself.
type Outcome struct {
	Index  int // Position of the item in the input.
	Result *runner.Result
	Err    error
}

// Failed reports whether the item failed.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Status names how the item settled.
type Status string

// Item statuses.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Status classifies the outcome.
func (o Outcome) Status() Status {
	switch {
	case o.Err == nil:
		return StatusSucceeded
	case errors.Is(o.Err, runner.ErrCancelled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Run submits every item to e in input order and waits until all of them
// have settled. The only errors returned are ErrEmptyID and ErrDuplicateID,
// detected before anything is submitted; execution failures are recorded
// in the Results.
func Run(ctx context.Context, e *engine.Engine, items []Item) (Results, error) {
	if err := validate(items); err != nil {
		return nil, err
	}

	logger := ctxlog.Logger(ctx).With("items", len(items))
	logger.Debug("submitting batch")

	tasks := make([]*engine.Task, len(items))
	for i, it := range items {
		tasks[i] = e.Submit(progress.WithLabel(ctx, it.ID), it.Command)
	}

	type settled struct {
		id      string
		outcome Outcome
	}

	wg := &sync.WaitGroup{}
	resChan := make(chan settled, len(items))

	for i, t := range tasks {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := t.Wait()
			resChan <- settled{id: items[i].ID, outcome: newOutcome(i, t.Retries(), res, err)}
		}()
	}

	wg.Wait()
	close(resChan)

	results := make(Results, len(items))
	for s := range resChan {
		results[s.id] = s.outcome
	}

	logger.Debug("batch settled", "failed", len(results.Failed()))

	return results, nil
}

func validate(items []Item) error {
	seen := make(map[string]int, len(items))

	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: item %d", ErrEmptyID, i)
		}

		if first, ok := seen[it.ID]; ok {
			return fmt.Errorf("%w: %q at items %d and %d", ErrDuplicateID, it.ID, first, i)
		}

		seen[it.ID] = i
	}

	return nil
}

func newOutcome(index, retries int, res *runner.Result, err error) Outcome {
	if err == nil {
		return Outcome{Index: index, Result: res}
	}

	exitCode := -1

	var pfe *runner.ProcessFailedError
	if errors.As(err, &pfe) {
		exitCode = pfe.ExitCode
	}

	return Outcome{
		Index: index,
		Err:   err,
		Result: &runner.Result{
			Stderr:     err.Error(),
			ExitCode:   exitCode,
			RetryCount: retries,
		},
	}
}
