// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package hcl

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

var (
	// ErrParse is returned when a file is not valid HCL syntax.
	ErrParse = errors.New("failed to parse HCL")
	// ErrDecode is returned when a file does not match the expected schema.
	ErrDecode = errors.New("failed to decode HCL")
)

// Decode parses src and decodes its body into target, which must be a
// pointer to a struct with `hcl` field tags. filename is used in diagnostics.
func Decode(src []byte, filename string, evalCtx *hcl.EvalContext, target any) error {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return errors.Join(ErrParse, diagErrors(diags))
	}

	if diags := gohcl.DecodeBody(file.Body, evalCtx, target); diags.HasErrors() {
		return errors.Join(ErrDecode, diagErrors(diags))
	}

	return nil
}

// diagErrors flattens the error diagnostics into a multierror so that each
// problem is reported on its own line.
func diagErrors(diags hcl.Diagnostics) error {
	var err error
	for _, e := range diags.Errs() {
		err = multierror.Append(err, e)
	}

	return err
}
