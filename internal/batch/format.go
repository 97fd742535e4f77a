// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/color"
)

// OutputOptions controls what is included in the text output.
type OutputOptions struct {
	IncludeStdOut      bool // Whether to include stdout in the output
	IncludeStdErr      bool // Whether to include stderr in the output
	ShowSuccessDetails bool // Whether to show details for successful items
}

// DefaultOutputOptions returns a default set of output options.
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{
		IncludeStdOut:      false,
		IncludeStdErr:      true,
		ShowSuccessDetails: false,
	}
}

// WriteText writes one status line per item in input order, with details
// for failures, followed by a summary line.
func (r Results) WriteText(w io.Writer, options *OutputOptions) error {
	if options == nil {
		options = DefaultOutputOptions()
	}

	for _, id := range r.IDs() {
		if err := writeOutcome(w, id, r[id], options); err != nil {
			return err
		}
	}

	failed := len(r.Failed())

	_, err := fmt.Fprintf(w, "\n%d succeeded, %d failed\n", len(r)-failed, failed)

	return err
}

func writeOutcome(w io.Writer, id string, o Outcome, options *OutputOptions) error {
	var statusStr, labelPrefix string

	switch o.Status() {
	case StatusCancelled:
		statusStr = color.Colorize("~", color.FgYellow)
		labelPrefix = color.Sequence(color.Bold, color.FgYellow)
	case StatusFailed:
		statusStr = color.Colorize("✗", color.FgRed)
		labelPrefix = color.Sequence(color.Bold, color.FgRed)
	default:
		statusStr = color.Colorize("✓", color.FgGreen)
		labelPrefix = color.Sequence(color.Bold, color.FgGreen)
	}

	res := o.Result

	if _, err := fmt.Fprintf(w, "%s %s%s%s", statusStr, labelPrefix, id, color.Sequence(color.Reset)); err != nil {
		return err
	}

	if res.Duration > 0 {
		fmt.Fprintf(w, " %s", color.Colorize("("+res.Duration.Round(time.Millisecond).String()+")", color.Faint)) // nolint:errcheck
	}

	if res.ExitCode != 0 {
		fmt.Fprintf(w, " (exit code: %d)", res.ExitCode) // nolint:errcheck
	}

	if res.RetryCount > 0 {
		fmt.Fprintf(w, " (retries: %d)", res.RetryCount) // nolint:errcheck
	}

	fmt.Fprintln(w) // nolint:errcheck

	if o.Err != nil {
		errColor := color.FgRed
		if o.Status() == StatusCancelled {
			errColor = color.FgYellow
		}

		fmt.Fprintf(w, "  %s %s\n", color.Colorize("➜ Error:", errColor), o.Err.Error()) // nolint:errcheck

		return nil
	}

	if !options.ShowSuccessDetails {
		return nil
	}

	if options.IncludeStdOut && res.Stdout != "" {
		fmt.Fprintf(w, "  ➜ Output:\n")                      // nolint:errcheck
		fmt.Fprintf(w, "%s", formatOutput(res.Stdout, "     ")) // nolint:errcheck
	}

	if options.IncludeStdErr && res.Stderr != "" {
		fmt.Fprintf(w, "  %s\n", color.Colorize("➜ Error Output:", color.FgHiRed)) // nolint:errcheck
		fmt.Fprintf(w, "%s", formatOutput(res.Stderr, "     "))                  // nolint:errcheck
	}

	return nil
}

// formatOutput formats multi-line output with proper indentation.
func formatOutput(output string, indent string) string {
	sb := strings.Builder{}
	lines := strings.Split(output, "\n")
	sb.Grow(len(output) + len(lines)*len(indent))

	for _, line := range lines {
		if line == "" {
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
