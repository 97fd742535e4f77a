// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// EnvPrefix is prepended to the upper-cased key of every setting.
const EnvPrefix = "PROCGATE_"

// ErrEnvOverride is returned when an environment variable holds an invalid value.
var ErrEnvOverride = errors.New("invalid environment override")

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

func (c *Config) fields() map[string]*int {
	return map[string]*int{
		"max_concurrency": &c.MaxConcurrency,
		"timeout_ms":      &c.TimeoutMs,
		"retry_attempts":  &c.RetryAttempts,
		"backoff_base_ms": &c.BackoffBaseMs,
		"backoff_max_ms":  &c.BackoffMaxMs,
	}
}

// ApplyEnv overrides settings from PROCGATE_* variables found by lookup.
// Values that are not integers are reported together and leave the
// setting unchanged.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var err error

	for key, field := range c.fields() {
		name := EnvPrefix + strings.ToUpper(key)

		raw, ok := lookup(name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		v, convErr := strconv.Atoi(strings.TrimSpace(raw))
		if convErr != nil {
			err = multierror.Append(err, fmt.Errorf("%s=%q: not an integer", name, raw))
			continue
		}

		*field = v
	}

	if err != nil {
		return errors.Join(ErrEnvOverride, err)
	}

	return nil
}
