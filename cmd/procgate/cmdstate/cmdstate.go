// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmdstate holds the flags shared by the subcommands that start an
// engine, and resolves them into an effective configuration.
package cmdstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/ctxlog"
	"github.com/matt-FFFFFF/procgate/internal/engine"
	"github.com/urfave/cli/v3"
)

// Flag names.
const (
	ConfigFlag      = "config"
	ParallelismFlag = "parallelism"
	TimeoutFlag     = "timeout"
	RetriesFlag     = "retries"
)

// ConfigEnvVar names the variable that supplies the default config file.
const ConfigEnvVar = config.EnvPrefix + "CONFIG"

// ErrLoadConfig is returned when the effective configuration cannot be built.
var ErrLoadConfig = errors.New("failed to load configuration")

// Flags returns fresh instances of the shared flags. Flags hold parse state,
// so every command needs its own set.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      ConfigFlag,
			Aliases:   []string{"c"},
			Usage:     "Engine configuration file (.yaml, .yml, .toml or .hcl)",
			TakesFile: true,
			Sources:   cli.EnvVars(ConfigEnvVar),
			OnlyOnce:  true,
		},
		&cli.IntFlag{
			Name:     ParallelismFlag,
			Aliases:  []string{"p"},
			Usage:    "Maximum number of processes running at once",
			OnlyOnce: true,
		},
		&cli.DurationFlag{
			Name:     TimeoutFlag,
			Usage:    "Per-attempt timeout, e.g. 30s",
			OnlyOnce: true,
		},
		&cli.IntFlag{
			Name:     RetriesFlag,
			Usage:    "Retries after the first failed attempt",
			OnlyOnce: true,
		},
	}
}

// Config resolves the effective configuration for cmd. Flags that were set
// explicitly override the file and the environment.
func Config(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String(ConfigFlag))
	if err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}

	if cmd.IsSet(ParallelismFlag) {
		cfg.MaxConcurrency = cmd.Int(ParallelismFlag)
	}

	if cmd.IsSet(TimeoutFlag) {
		cfg.TimeoutMs = int(cmd.Duration(TimeoutFlag) / time.Millisecond)
	}

	if cmd.IsSet(RetriesFlag) {
		cfg.RetryAttempts = cmd.Int(RetriesFlag)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrLoadConfig, err)
	}

	ctxlog.Debug(ctx, "effective configuration",
		"max_concurrency", cfg.MaxConcurrency,
		"timeout_ms", cfg.TimeoutMs,
		"retry_attempts", cfg.RetryAttempts,
	)

	return cfg, nil
}

// NewEngine builds an engine from the configuration of cmd.
func NewEngine(ctx context.Context, cmd *cli.Command, opts ...engine.Option) (*engine.Engine, error) {
	cfg, err := Config(ctx, cmd)
	if err != nil {
		return nil, err
	}

	e, err := engine.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	return e, nil
}
