// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns termination signals into engine cancellation.
//
// procgate cancels its root context on the first SIGINT, SIGTERM or SIGQUIT.
// The engine then kills every running process group and reports the queued
// and running tasks as cancelled, so a batch still prints its results.
// Repeating the same signal exits at once with ExitCodeInterrupted.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
)

// stopSignals are watched when New is given none. os.Interrupt is listed
// for Windows, where it is the only one delivered.
var stopSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// New returns a channel receiving sigs, or the stop signals when sigs is empty.
// Release it with Stop.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	if len(sigs) == 0 {
		sigs = stopSignals
	}

	// One slot is enough: Watch only needs to see each signal type once
	// before cancelling.
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	ctxlog.Debug(ctx, "watching signals", "signals", sigs)

	return ch
}

// Stop stops delivery to ch and closes it, which ends any Watch on it.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
	close(ch)
}
