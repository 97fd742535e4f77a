// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package retry runs a command through an Executor until it succeeds, the
// retry budget is spent or the context is cancelled. Between attempts it
// waits for a capped exponential backoff delay.
package retry
