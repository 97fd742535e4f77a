// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import "time"

// Result is the outcome of a successful execution.
type Result struct {
	Stdout     string        // Captured standard output, trailing whitespace trimmed.
	Stderr     string        // Captured standard error, trailing whitespace trimmed.
	ExitCode   int           // Always zero for a successful execution.
	Duration   time.Duration // Wall-clock duration of the successful attempt.
	RetryCount int           // Number of failed attempts before this one.
}
