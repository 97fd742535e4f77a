// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Command describes one invocation of an external program.
// It is a value: the With* methods return modified copies.
type Command struct {
	Args    []string          // Argument vector, Args[0] is the executable.
	Cwd     string            // Working directory, empty means the current one.
	Env     map[string]string // Added on top of the parent environment.
	Timeout time.Duration     // Per-attempt timeout, zero selects the engine default.
	Retries *int              // Retry budget, nil selects the engine default.
}

// NewCommand returns a Command for the given argument vector.
func NewCommand(args ...string) Command {
	return Command{Args: slices.Clone(args)}
}

// WithTimeout returns a copy of c with the per-attempt timeout set.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// WithRetries returns a copy of c with the retry budget set.
func (c Command) WithRetries(n int) Command {
	c.Retries = &n
	return c
}

// WithCwd returns a copy of c running in dir.
func (c Command) WithCwd(dir string) Command {
	c.Cwd = dir
	return c
}

// WithEnv returns a copy of c with key=value added to its environment.
func (c Command) WithEnv(key, value string) Command {
	env := maps.Clone(c.Env)
	if env == nil {
		env = make(map[string]string, 1)
	}

	env[key] = value
	c.Env = env

	return c
}

// TimeoutOr returns the command timeout, or def when none is set.
func (c Command) TimeoutOr(def time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}

	return def
}

// RetriesOr returns the command retry budget, or def when none is set.
func (c Command) RetriesOr(def int) int {
	if c.Retries != nil {
		return max(*c.Retries, 0)
	}

	return def
}

// String renders the argument vector for logs, quoting arguments that
// contain spaces or quotes.
func (c Command) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = strconv.Quote(a)
		}

		parts[i] = a
	}

	return strings.Join(parts, " ")
}
