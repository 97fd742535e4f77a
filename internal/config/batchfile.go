// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/procgate/internal/hcl"
	"github.com/matt-FFFFFF/procgate/internal/runner"
	"github.com/spf13/afero"
)

var (
	// ErrNoItems is returned when a batch file defines no items.
	ErrNoItems = errors.New("no items specified")
	// ErrInvalidItem is returned when a batch item is incomplete.
	ErrInvalidItem = errors.New("invalid batch item")
)

// BatchFile is the root of a batch definition.
type BatchFile struct {
	Name        string      `yaml:"name,omitempty" hcl:"name,optional" docdesc:"Name of the batch, defaults to the file name"`
	Description string      `yaml:"description,omitempty" hcl:"description,optional" docdesc:"What the batch does"`
	Items       []BatchItem `yaml:"items" hcl:"item,block" docdesc:"Commands to run, in submission order"`
}

// BatchItem is one command of a batch.
type BatchItem struct {
	ID        string            `yaml:"id" hcl:"id,label" docdesc:"Unique id of the item"`
	Args      []string          `yaml:"args" hcl:"args" docdesc:"Program and arguments, not interpreted by a shell"`
	TimeoutMs *int              `yaml:"timeout_ms,omitempty" hcl:"timeout_ms,optional" docdesc:"Per-attempt timeout in milliseconds"`
	Retries   *int              `yaml:"retries,omitempty" hcl:"retries,optional" docdesc:"Retries after the first failed attempt"`
	Cwd       string            `yaml:"cwd,omitempty" hcl:"cwd,optional" docdesc:"Working directory, relative to the batch file"`
	Env       map[string]string `yaml:"env,omitempty" hcl:"env,optional" docdesc:"Variables added to the inherited environment"`
}

// Command converts the item into a runner.Command. Unset timeout and
// retries are left for the engine defaults.
func (i BatchItem) Command() runner.Command {
	cmd := runner.NewCommand(i.Args...).WithCwd(i.Cwd)
	cmd.Env = i.Env

	if i.TimeoutMs != nil {
		cmd = cmd.WithTimeout(time.Duration(*i.TimeoutMs) * time.Millisecond)
	}

	if i.Retries != nil {
		cmd = cmd.WithRetries(*i.Retries)
	}

	return cmd
}

// LoadBatch reads and parses the batch file at path. Relative working
// directories are resolved against the directory of the file.
func LoadBatch(path string) (*BatchFile, error) {
	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}

	b, err := ParseBatch(data, path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)

	for i := range b.Items {
		if cwd := b.Items[i].Cwd; cwd != "" && !filepath.IsAbs(cwd) {
			b.Items[i].Cwd = filepath.Join(dir, cwd)
		}
	}

	return b, nil
}

// ParseBatch decodes a batch definition. The format is chosen from the
// extension of filename.
func ParseBatch(data []byte, filename string) (*BatchFile, error) {
	var b BatchFile

	switch ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, &b, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYaml, filename, err)
		}
	case ".hcl":
		if err := hcl.Decode(data, filename, hcl.NewEvalContext(environ()), &b); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.Name == "" {
		b.Name = filepath.Base(filename)
	}

	return &b, nil
}

func (b *BatchFile) validate() error {
	if len(b.Items) == 0 {
		return ErrNoItems
	}

	var err error

	for n, item := range b.Items {
		if len(item.Args) == 0 {
			err = multierror.Append(err, fmt.Errorf("item %d (%q): args must not be empty", n, item.ID))
		}

		if item.TimeoutMs != nil && *item.TimeoutMs < 1 {
			err = multierror.Append(err, fmt.Errorf("item %d (%q): timeout_ms must be positive", n, item.ID))
		}

		if item.Retries != nil && *item.Retries < 0 {
			err = multierror.Append(err, fmt.Errorf("item %d (%q): retries must not be negative", n, item.ID))
		}
	}

	if err != nil {
		return errors.Join(ErrInvalidItem, err)
	}

	return nil
}
