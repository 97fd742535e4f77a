// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package batch submits a set of identified commands to an engine and
// collects every outcome into a map keyed by id.
//
// A failing item never aborts its siblings: Run waits for all items to
// settle and records each failure next to the successes.
package batch
