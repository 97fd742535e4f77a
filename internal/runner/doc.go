// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runner spawns a single external process for a Command, captures
// its output, enforces the command timeout and reacts to context
// cancellation. Arguments are passed to the operating system as a vector;
// nothing is interpreted by a shell.
//
// Every failure is classified into one of the sentinel errors ErrSpawn,
// ErrTimeout, ErrProcessFailed or ErrCancelled so that callers can decide
// whether to retry with errors.Is.
package runner
