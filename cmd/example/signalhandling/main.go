// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Command signalhandling shows how an interrupt flows through the engine:
// the first Ctrl+C cancels queued and running commands, a second one exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/matt-FFFFFF/procgate/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second) //nolint:mnd
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	ctxlog.LevelVar.Set(slog.LevelDebug)

	defer cancel()

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go signalbroker.Watch(ctx, sigCh, cancel)

	cfg := config.Default()
	cfg.MaxConcurrency = 2
	cfg.RetryAttempts = 1

	e, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1) //nolint:gocritic
	}
	defer e.Close()

	fmt.Println("=== Signal Handling Demo ===")
	fmt.Println("1. Press Ctrl+C once to gracefully cancel all processes")
	fmt.Println("2. Press Ctrl+C twice to forcefully terminate")
	fmt.Println("3. Wait 30 seconds for auto-timeout")
	fmt.Println("Running commands...")

	results, err := batch.Run(ctx, e, demoItems())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	fmt.Println("\n=== Results ===")

	options := batch.DefaultOutputOptions()
	options.IncludeStdOut = true
	options.ShowSuccessDetails = true

	if err := results.WriteText(os.Stdout, options); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// demoItems mixes quick commands, long sleeps that will be interrupted and
// a command that only gets a slot once a sleep has finished.
func demoItems() []batch.Item {
	return []batch.Item{
		{ID: "echo-start", Command: runner.NewCommand("/bin/sh", "-c", "echo Starting demo...")},
		{ID: "long-sleep", Command: runner.NewCommand("/bin/sleep", "30")},
		{ID: "ticker", Command: runner.NewCommand("/bin/sh", "-c", "for i in $(seq 60); do echo tick $i; sleep 1; done")},
		{ID: "flaky", Command: runner.NewCommand("/bin/sh", "-c", "echo flaky >&2; exit 1")},
		{
			ID:      "final-echo",
			Command: runner.NewCommand("/bin/sh", "-c", "echo This should only print if no interruption occurred"),
		},
	}
}
