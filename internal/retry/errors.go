// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import (
	"errors"
	"fmt"
)

// ErrRetriesExhausted is matched by *RetriesExhaustedError.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetriesExhaustedError is returned after every permitted attempt failed.
// It unwraps to the error of the last attempt.
type RetriesExhaustedError struct {
	Attempts int     // Total attempts made, retries + 1.
	Err      error   // Error of the last attempt.
	History  []error // Error of every attempt, oldest first.
}

// Error implements the error interface.
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %v", ErrRetriesExhausted, e.Attempts, e.Err)
}

// Is makes errors.Is(err, ErrRetriesExhausted) true.
func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Unwrap returns the error of the last attempt.
func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}
