// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSpawn is returned when the operating system could not start the process.
	ErrSpawn = errors.New("could not start process")
	// ErrNoArgs is joined with ErrSpawn when the command has an empty argument vector.
	ErrNoArgs = errors.New("command has no arguments")
	// ErrTimeout is returned when the process outlived its timeout and was terminated.
	ErrTimeout = errors.New("timeout exceeded")
	// ErrProcessFailed is matched by *ProcessFailedError.
	ErrProcessFailed = errors.New("process failed")
	// ErrCancelled is returned when the caller cancelled the execution.
	ErrCancelled = errors.New("execution cancelled")
)

// ProcessFailedError is returned when the process exited with a non-zero code.
type ProcessFailedError struct {
	ExitCode int    // Exit code, -1 when the process did not exit normally.
	Stderr   string // Captured standard error, trimmed.
	Err      error  // Underlying wait error, if any.
}

// Error implements the error interface.
func (e *ProcessFailedError) Error() string {
	msg := fmt.Sprintf("process exited with code %d", e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}

	return msg
}

// Is makes errors.Is(err, ErrProcessFailed) true.
func (e *ProcessFailedError) Is(target error) bool {
	return target == ErrProcessFailed
}

// Unwrap returns the underlying wait error.
func (e *ProcessFailedError) Unwrap() error {
	return e.Err
}

// Cancelled wraps the cancellation cause of ctx so that it matches ErrCancelled.
func Cancelled(ctx context.Context) error {
	cause := context.Cause(ctx)

	switch {
	case cause == nil:
		return ErrCancelled
	case errors.Is(cause, ErrCancelled):
		return cause
	default:
		return errors.Join(ErrCancelled, cause)
	}
}

// Retryable reports whether err is a failure worth another attempt.
// Cancellation is never retryable.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, ErrCancelled) {
		return false
	}

	return errors.Is(err, ErrSpawn) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrProcessFailed)
}
