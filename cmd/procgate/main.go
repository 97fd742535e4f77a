// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the procgate command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/procgate"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/config"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/exec"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/run"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/shell"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/show"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

const logJSONFlag = "log-json"

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		config.ConfigCmd,
		exec.ExecCmd,
		run.RunCmd,
		shell.ShellCmd,
		show.ShowCmd,
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  logJSONFlag,
			Usage: "Write log records as JSON. Set PROCGATE_LOG_LEVEL to change the level",
		},
	},
	Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cmd.Bool(logJSONFlag) {
			ctx = ctxlog.New(ctx, ctxlog.JSONLogger)
		}

		return ctx, nil
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "procgate",
	Description: `procgate runs external commands with a bounded number of processes at once.
Every command gets a timeout and is retried with exponential backoff when it fails.
Commands wait in a first-in first-out queue for a free slot, and can be cancelled
while queued or running.`,
	Usage:     "procgate run -f batch.yaml",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)
	defer signalbroker.Stop(sigCh)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", procgate.Version, procgate.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1) //nolint:gocritic
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	ctxlog.Logger(ctx).Debug("command completed successfully")
}
