// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a real-time Terminal User Interface (TUI) for monitoring
// a batch running on the engine. It lists every item with a status indicator,
// its elapsed time and the last output line while it runs, above a status bar
// showing the engine's running, queued and process counts.
//
// The TUI is driven by progress events and by periodic engine stats samples.
package tui
