// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/term"
)

// Code is a single SGR parameter.
type Code int

const (
	// NoColor is the environment variable that disables color output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces color output.
	ForceColor = "FORCE_COLOR"

	csi   = "\033["
	sgr   = "m"
	reset = csi + "0" + sgr
)

// Text attributes.
const (
	Reset Code = 0
	Bold  Code = 1
	Faint Code = 2
)

// Foreground colours.
const (
	FgRed     Code = 31
	FgGreen   Code = 32
	FgYellow  Code = 33
	FgBlue    Code = 34
	FgMagenta Code = 35
	FgCyan    Code = 36
	FgWhite   Code = 37

	FgHiBlack   Code = 90
	FgHiRed     Code = 91
	FgHiMagenta Code = 95
	FgHiWhite   Code = 97
)

var enabled atomic.Bool

func init() {
	enabled.Store(isColorCapable())
}

// Enabled reports whether Colorize emits escape codes.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled overrides terminal detection, mostly useful for tests and for
// writers that are known not to be terminals.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Sequence renders the escape sequence for the given codes.
// It returns an empty string when colour is disabled.
func Sequence(codes ...Code) string {
	if !Enabled() || len(codes) == 0 {
		return ""
	}

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(int(c))
	}

	return csi + strings.Join(parts, ";") + sgr
}

// Colorize wraps str in the given codes followed by a reset.
func Colorize(str string, codes ...Code) string {
	if !Enabled() {
		return str
	}

	return Sequence(codes...) + str + reset
}

func isColorCapable() bool {
	if os.Getenv(NoColor) != "" {
		return false
	}

	if os.Getenv(ForceColor) != "" {
		return true
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}
