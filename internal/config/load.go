// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/procgate/internal/hcl"
	"github.com/spf13/afero"
)

var (
	// ErrReadFile is returned when a file cannot be read.
	ErrReadFile = errors.New("failed to read file")
	// ErrUnsupportedFormat is returned for an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format, use .yaml, .yml, .toml or .hcl")
	// ErrInvalidYaml is returned when a YAML document cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidToml is returned when a TOML document cannot be decoded.
	ErrInvalidToml = errors.New("invalid TOML")
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// environ is the environment exposed to HCL files.
var environ = os.Environ

// Load resolves the configuration from defaults, the file at path (if not
// empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the settings present in the file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return errors.Join(ErrReadFile, err)
	}

	return c.decode(data, path)
}

func (c *Config) decode(data []byte, filename string) error {
	switch ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, c, yaml.Strict()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidYaml, filename, err)
		}
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidToml, filename, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}

			slices.Sort(keys)

			return fmt.Errorf("%w: %s: unknown keys %s", ErrInvalidToml, filename, strings.Join(keys, ", "))
		}
	case ".hcl":
		if err := hcl.Decode(data, filename, hcl.NewEvalContext(environ()), c); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	return nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
