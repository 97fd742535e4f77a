// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
)

// Default values.
const (
	DefaultMaxConcurrency = 5
	DefaultTimeoutMs      = 30000
	DefaultRetryAttempts  = 3
	DefaultBackoffBaseMs  = 1000
	DefaultBackoffMaxMs   = 10000
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the engine settings.
type Config struct {
	MaxConcurrency int `yaml:"max_concurrency" toml:"max_concurrency" hcl:"max_concurrency,optional"`
	TimeoutMs      int `yaml:"timeout_ms" toml:"timeout_ms" hcl:"timeout_ms,optional"`
	RetryAttempts  int `yaml:"retry_attempts" toml:"retry_attempts" hcl:"retry_attempts,optional"`
	BackoffBaseMs  int `yaml:"backoff_base_ms" toml:"backoff_base_ms" hcl:"backoff_base_ms,optional"`
	BackoffMaxMs   int `yaml:"backoff_max_ms" toml:"backoff_max_ms" hcl:"backoff_max_ms,optional"`
}

// Default returns a Config populated with the default values.
func Default() *Config {
	return &Config{
		MaxConcurrency: DefaultMaxConcurrency,
		TimeoutMs:      DefaultTimeoutMs,
		RetryAttempts:  DefaultRetryAttempts,
		BackoffBaseMs:  DefaultBackoffBaseMs,
		BackoffMaxMs:   DefaultBackoffMaxMs,
	}
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Timeout is the default per-attempt timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// BackoffBase is the delay after the first failed attempt.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffMax caps every backoff delay.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	if c.MaxConcurrency < 1 {
		err = multierror.Append(err, fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency))
	}

	if c.TimeoutMs < 1 {
		err = multierror.Append(err, fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMs))
	}

	if c.RetryAttempts < 0 {
		err = multierror.Append(err, fmt.Errorf("retry_attempts must not be negative, got %d", c.RetryAttempts))
	}

	if c.BackoffBaseMs < 0 {
		err = multierror.Append(err, fmt.Errorf("backoff_base_ms must not be negative, got %d", c.BackoffBaseMs))
	}

	if c.BackoffMaxMs < c.BackoffBaseMs {
		err = multierror.Append(err, fmt.Errorf("backoff_max_ms (%d) must not be less than backoff_base_ms (%d)",
			c.BackoffMaxMs, c.BackoffBaseMs))
	}

	if err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}

	return nil
}

// WriteYAML writes c to w as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	_, err = w.Write(b)

	return err
}
