// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show implements the show subcommand, which prints saved results.
package show

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/color"
	"github.com/urfave/cli/v3"
)

const (
	fileArg  = "file"
	jsonFlag = "json"
)

var (
	// ErrReadFile is returned when the file cannot be read.
	ErrReadFile = errors.New("failed to read file")
	// ErrWriteResults is returned when the results cannot be written.
	ErrWriteResults = errors.New("failed to write results")
)

// ShowCmd is the command that shows results saved by run --out.
var ShowCmd = &cli.Command{
	Name:        "show",
	Usage:       "Show previously saved results",
	Description: "Show results saved with run --out.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      fileArg,
			UsageText: "RESULTSFILE",
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  jsonFlag,
			Usage: "Print the results as JSON",
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		name := cmd.StringArg(fileArg)
		if name == "" {
			return cli.Exit("Please provide a results file to show", 1)
		}

		file, err := os.Open(name)
		if err != nil {
			return cli.Exit(errors.Join(ErrReadFile, err).Error(), 1)
		}
		defer file.Close() //nolint:errcheck

		if err := show(file, cmd.Writer, cmd.Bool(jsonFlag)); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		return nil
	},
}

func show(r io.Reader, w io.Writer, asJSON bool) error {
	title, results, err := batch.ReadBinary(r)
	if err != nil {
		return err
	}

	if asJSON {
		if err := results.WriteJSON(w, color.Enabled()); err != nil {
			return errors.Join(ErrWriteResults, err)
		}

		return nil
	}

	if _, err := fmt.Fprintf(w, "Results of %s\n\n", title); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	opts := batch.DefaultOutputOptions()
	opts.ShowSuccessDetails = true
	opts.IncludeStdOut = true

	if err := results.WriteText(w, opts); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}
