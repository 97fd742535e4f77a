// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads the engine configuration and batch files.
//
// Engine configuration is resolved in order of precedence: built-in
// defaults, then a YAML, TOML or HCL file, then PROCGATE_* environment
// variables. Command line flags are applied last by the caller.
package config
