// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config implements the config subcommand.
package config

import (
	"context"

	"github.com/matt-FFFFFF/procgate/cmd/procgate/cmdstate"
	"github.com/matt-FFFFFF/procgate/internal/config"
	"github.com/matt-FFFFFF/procgate/internal/schema"
	"github.com/urfave/cli/v3"
)

// ConfigCmd prints the effective engine configuration.
var ConfigCmd = &cli.Command{
	Name:  "config",
	Usage: "Print the effective engine configuration as YAML",
	Description: `Print the configuration the engine would run with, after applying the defaults,
the configuration file, PROCGATE_* environment variables and flags, in that order.`,
	Flags:  cmdstate.Flags(),
	Action: actionFunc,
	Commands: []*cli.Command{
		{
			Name:   "schema",
			Usage:  "Print the JSON schema of batch files",
			Action: schemaFunc,
		},
	},
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	cfg, err := cmdstate.Config(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := cfg.WriteYAML(cmd.Writer); err != nil {
		return cli.Exit("failed to write configuration: "+err.Error(), 1)
	}

	return nil
}

func schemaFunc(_ context.Context, cmd *cli.Command) error {
	s, err := schema.Generate(config.BatchFile{}, "procgate batch file",
		"Commands run by procgate run, in YAML form. HCL files use item blocks labelled with the id.")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := s.WriteJSON(cmd.Writer); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return nil
}
