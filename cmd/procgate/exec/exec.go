// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package exec implements the exec subcommand, which runs a single command
// through the engine.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matt-FFFFFF/procgate/cmd/procgate/cmdstate"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/urfave/cli/v3"
)

// ErrNoCommand is returned when no program was given.
var ErrNoCommand = errors.New("no command specified, use: procgate exec [flags] -- PROG ARGS")

// ExecCmd runs one command with the engine's timeout and retry handling.
var ExecCmd = &cli.Command{
	Name:      "exec",
	Usage:     "Run a single command with timeout and retries",
	ArgsUsage: "-- PROG [ARGS...]",
	Description: `Run one command through the engine and copy its output to the terminal.
The command is retried with exponential backoff when it fails or times out.
The exit status is 1 when the last attempt failed.`,
	Flags:  cmdstate.Flags(),
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return cli.Exit(ErrNoCommand.Error(), 1)
	}

	reporter := cmdstate.LogReporter(ctx)
	defer reporter.Close()

	e, err := cmdstate.NewEngine(ctx, cmd, engine.WithReporter(reporter))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	defer e.Close()

	res, err := e.Run(ctx, runner.NewCommand(args...))
	if err != nil {
		ctxlog.Error(ctx, "command failed", "error", err)
		return cli.Exit("", 1)
	}

	if err := writeOutput(cmd.Writer, cmd.ErrWriter, res); err != nil {
		return cli.Exit("failed to write output: "+err.Error(), 1)
	}

	return nil
}

// writeOutput copies the captured output of a successful command. A failed
// command reports its stderr through the logged error.
func writeOutput(stdout, stderr io.Writer, res *runner.Result) error {
	if res == nil {
		return nil
	}

	if res.Stdout != "" {
		if _, err := fmt.Fprintln(stdout, res.Stdout); err != nil {
			return err
		}
	}

	if res.Stderr != "" {
		if _, err := fmt.Fprintln(stderr, res.Stderr); err != nil {
			return err
		}
	}

	return nil
}
