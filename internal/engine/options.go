// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package engine

import (
	"github.com/matt-FFFFFF/procgate/internal/progress"
	"github.com/matt-FFFFFF/procgate/internal/retry"
)

// Option configures an Engine.
type Option func(e *Engine)

// WithExecutor replaces the process runner used for each attempt.
func WithExecutor(exec retry.Executor) Option {
	return func(e *Engine) {
		e.exec = exec
	}
}

// WithReporter sends task lifecycle events to r.
func WithReporter(r progress.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithBackoff overrides the backoff policy derived from the configuration.
func WithBackoff(p retry.Policy) Option {
	return func(e *Engine) {
		e.policy = &p
	}
}
