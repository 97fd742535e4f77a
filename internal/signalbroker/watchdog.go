// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
)

// ExitCodeInterrupted is used when the process is forced to exit.
const ExitCodeInterrupted = 130

// exitFunc terminates the process. Tests replace it.
var exitFunc = os.Exit

// Watch monitors the signal channel until it is closed.
// The first signal of a type calls cancel so that running commands are
// terminated and results can still be reported. A second signal of the
// same type exits the process immediately.
func Watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelFunc) {
	sigMap := make(map[os.Signal]struct{})

	for sig := range sigCh {
		if _, ok := sigMap[sig]; ok {
			ctxlog.Logger(ctx).Warn("watchdog", "detail", "received second signal of type, forcefully terminating", "signal", sig.String())
			exitFunc(ExitCodeInterrupted)

			return
		}

		ctxlog.Logger(ctx).Info("watchdog", "detail", "received first signal of type, cancelling", "signal", sig.String())

		sigMap[sig] = struct{}{}

		cancel()
	}
}
