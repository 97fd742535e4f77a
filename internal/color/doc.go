// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decorates terminal output with ANSI escape codes.
// Colour is disabled when NO_COLOR is set, forced when FORCE_COLOR is set,
// and otherwise follows whether stdout is a terminal.
package color
