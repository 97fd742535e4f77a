// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package engine admits command executions under a global concurrency limit.
//
// Submitted tasks wait in a FIFO queue until one of the N slots is free.
// Each admitted task runs on its own goroutine through a retry.Controller,
// holding its slot for every attempt and every backoff wait in between.
// Releasing the slot, updating the counters and resolving the task happen
// under one lock, so Stats never counts a task twice or not at all.
//
// An Engine is safe for concurrent use. The limit can be changed while work
// is in flight with Reconfigure.
package engine
