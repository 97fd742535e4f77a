// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package hcl decodes HCL configuration and batch files and evaluates
// standalone HCL expressions.
//
// Files are evaluated with an `env` object holding the process environment
// and the upper, lower, join and format functions.
package hcl
