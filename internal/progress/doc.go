// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries real-time lifecycle events for engine tasks:
// queued, started, output, retrying and the terminal outcomes.
// Reporters must never block the engine, so events are dropped rather than
// queued without bound when nobody is listening.
package progress
