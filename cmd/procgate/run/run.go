// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the run subcommand, which executes batch files.
package run

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/procgate/cmd/procgate/cmdstate"
	"github.com/matt-FFFFFF/procgate/internal/batch"
	"github.com/matt-FFFFFF/procgate/internal/color"
	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/matt-FFFFFF/procgate/internal/tui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag                 = "file"
	outFlag                  = "out"
	jsonFlag                 = "json"
	noOutputStdErrFlag       = "no-output-stderr"
	outputStdOutFlag         = "output-stdout"
	outputSuccessDetailsFlag = "output-success-details"
	tuiFlag                  = "tui"
	fetchTimeoutFlag         = "fetch-timeout"
	fetchTimeoutDefault      = 30 * time.Second
	cliExitStr               = ""
)

var (
	// ErrGetBatchFile is returned when a batch file cannot be fetched.
	ErrGetBatchFile = errors.New("failed to get batch file")
	// ErrNoBatch is returned when no batch file was given.
	ErrNoBatch = errors.New("no batch file specified")
)

// RunCmd is the command that runs the items of one or more batch files.
var RunCmd = &cli.Command{
	Name:  "run",
	Usage: "Run the commands of one or more batch files",
	Description: `Run every item of the given batch files through the engine and print the results.
Batch files are YAML or HCL documents listing commands with an id and optional
timeout, retries, working directory and environment.

Batch file URLs use Hashicorp's go-getter syntax, which allows for fetching files from various sources.
See https://github.com/hashicorp/go-getter.

When several files are given their items run together, with ids prefixed by the batch name.
`,
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:    fileFlag,
			Aliases: []string{"f"},
			Usage: "Specify the URL of a batch file to run. " +
				"Supports Hashicorp's go-getter syntax for fetching files from various sources. " +
				"Specify multiple times to run multiple files.",
		},
		&cli.StringFlag{
			Name:      outFlag,
			Usage:     "Save the results to this file, for the show command",
			TakesFile: true,
			OnlyOnce:  true,
		},
		&cli.BoolFlag{
			Name:     jsonFlag,
			Usage:    "Print the results as JSON",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:     outputSuccessDetailsFlag,
			Aliases:  []string{"success"},
			Usage:    "Include successful results in the output",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:     noOutputStdErrFlag,
			Aliases:  []string{"no-stderr"},
			Usage:    "Exclude stderr output in the results",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:     outputStdOutFlag,
			Aliases:  []string{"stdout"},
			Usage:    "Include stdout output in the results",
			OnlyOnce: true,
		},
		&cli.BoolFlag{
			Name:     tuiFlag,
			Aliases:  []string{"t", "interactive"},
			Usage:    "Run with interactive Terminal User Interface (TUI) showing real-time progress",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:  fetchTimeoutFlag,
			Usage: "Maximum time to spend fetching each batch file",
			Value: fetchTimeoutDefault,
		},
	}, cmdstate.Flags()...),
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	urls := cmd.StringSlice(fileFlag)
	if len(urls) == 0 {
		logger.Error("Please specify at least one batch file using the --file or -f flag.")
		return cli.Exit(ErrNoBatch.Error(), 1)
	}

	batches := make([]*config.BatchFile, 0, len(urls))

	for i, u := range urls {
		if u == "" {
			logger.Error(fmt.Sprintf("The URL at index %d is empty. Please provide a valid URL.", i))
			return cli.Exit(cliExitStr, 1)
		}

		fetchCtx, cancel := context.WithTimeout(ctx, cmd.Duration(fetchTimeoutFlag))
		b, err := loadBatch(fetchCtx, u)

		cancel()

		if err != nil {
			logger.Error(fmt.Sprintf("Failed to load batch file %s: %s", u, err.Error()))
			return cli.Exit(cliExitStr, 1)
		}

		batches = append(batches, b)
	}

	items, title := merge(batches)

	var (
		res     batch.Results
		execErr error
	)

	switch cmd.Bool(tuiFlag) {
	case true:
		logger.Info("Starting interactive TUI mode...")

		buf := new(bytes.Buffer)
		tuiCtx := ctxlog.NewForTUI(ctx, buf)

		runner := tui.NewRunner(title)

		e, err := cmdstate.NewEngine(tuiCtx, cmd, engine.WithReporter(runner.Reporter()))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		runner.Bind(e)

		res, execErr = runner.Run(tuiCtx, func(ctx context.Context) (batch.Results, error) {
			return batch.Run(ctx, e, items)
		})

		e.Close()

		buf.WriteTo(cmd.Writer) //nolint:errcheck
	default:
		reporter := cmdstate.LogReporter(ctx)

		e, err := cmdstate.NewEngine(ctx, cmd, engine.WithReporter(reporter))
		if err != nil {
			reporter.Close()
			return cli.Exit(err.Error(), 1)
		}

		res, execErr = batch.Run(ctx, e, items)

		e.Close()
		reporter.Close()
	}

	if execErr != nil && res == nil {
		logger.Error(fmt.Sprintf("Failed to run batch: %s", execErr.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	if execErr != nil {
		logger.Error(fmt.Sprintf("TUI execution error: %s", execErr.Error()))
	}

	if outFileName := cmd.String(outFlag); outFileName != "" {
		if err := writeResults(outFileName, title, res); err != nil {
			logger.Error(err.Error())
			return cli.Exit(cliExitStr, 1)
		}

		logger.Info(fmt.Sprintf("Results written to %s", outFileName))
	}

	if cmd.Bool(jsonFlag) {
		if err := res.WriteJSON(cmd.Writer, color.Enabled()); err != nil {
			logger.Error(fmt.Sprintf("Failed to write results: %s", err.Error()))
			return cli.Exit(cliExitStr, 1)
		}
	} else {
		opts := batch.DefaultOutputOptions()
		opts.IncludeStdErr = !cmd.Bool(noOutputStdErrFlag)
		opts.IncludeStdOut = cmd.Bool(outputStdOutFlag)
		opts.ShowSuccessDetails = cmd.Bool(outputSuccessDetailsFlag)

		if err := res.WriteText(cmd.Writer, opts); err != nil {
			logger.Error(fmt.Sprintf("Failed to write results: %s", err.Error()))
			return cli.Exit(cliExitStr, 1)
		}
	}

	if res.HasError() {
		logger.Error("Some commands failed. See above for details.")
		return cli.Exit(cliExitStr, 1)
	}

	return nil
}

// loadBatch reads a batch file from the local file system, or fetches it
// with go-getter when it is not a local path.
func loadBatch(ctx context.Context, url string) (*config.BatchFile, error) {
	if ok, _ := afero.Exists(config.FsFactory(), url); ok {
		return config.LoadBatch(url)
	}

	data, fileName, err := getURL(ctx, url)
	if err != nil {
		return nil, err
	}

	return config.ParseBatch(data, fileName)
}

// merge flattens the batches into one item list. Ids are prefixed with the
// batch name when there is more than one batch.
func merge(batches []*config.BatchFile) ([]batch.Item, string) {
	var (
		items []batch.Item
		names []string
	)

	for _, b := range batches {
		names = append(names, b.Name)

		for _, it := range b.Items {
			id := it.ID
			if len(batches) > 1 {
				id = b.Name + "/" + id
			}

			items = append(items, batch.Item{ID: id, Command: it.Command()})
		}
	}

	return items, strings.Join(names, ", ")
}

func writeResults(name, title string, res batch.Results) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", name, err)
	}

	defer f.Close() //nolint:errcheck

	if err := res.WriteBinary(f, title); err != nil {
		return fmt.Errorf("failed to write results to file %s: %w", name, err)
	}

	return nil
}

// getURL retrieves the content from the specified URL using Hashicorp's go-getter.
// It returns the content and the file name, and removes the temporary download.
func getURL(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", ErrGetBatchFile
	}

	tmpDir, err := os.MkdirTemp("", "procgate-getter-*")
	if err != nil {
		return nil, "", errors.Join(ErrGetBatchFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, "", errors.Join(ErrGetBatchFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string
	// Remote sources are fetched as a directory and the file is read from there.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			return nil, "", errors.Join(ErrGetBatchFile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			return nil, "", fmt.Errorf("%w: invalid URL format: %s", ErrGetBatchFile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, "", errors.Join(ErrGetBatchFile, err)
	}

	data, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, "", errors.Join(ErrGetBatchFile, err)
	}

	return data, fileName, nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL splits the URL into the directory and file name.
// It returns the new getter URL without the file name and the file name itself.
// Any ref query parameter is carried over to the new URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref, fileName string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := len(parts) - 1

	if strings.Contains(parts[last], goGetterRefSeparator) {
		refSplit := strings.Split(parts[last], goGetterRefSeparator)
		if len(refSplit) > 1 {
			ref = strings.Join(refSplit[1:], "")
		}

		parts[last] = refSplit[0]
	}

	if filepath.Clean(parts[last]) == filepath.Dir(parts[last]) {
		return "", ""
	}

	fileName = filepath.Base(parts[last])
	parts[last] = filepath.Dir(parts[last])

	if parts[last] == "." {
		parts = parts[:last]
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
