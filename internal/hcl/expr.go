// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package hcl

import (
	"errors"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ErrEvaluate is returned when an expression cannot be evaluated.
var ErrEvaluate = errors.New("failed to evaluate expression")

// Evaluate evaluates a single expression and renders the value as JSON.
func Evaluate(input string, evalCtx *hcl.EvalContext) (string, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(input), "repl.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return "", errors.Join(ErrParse, diagErrors(diags))
	}

	value, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", errors.Join(ErrEvaluate, diagErrors(diags))
	}

	b, err := ctyjson.Marshal(value, value.Type())
	if err != nil {
		return "", errors.Join(ErrEvaluate, err)
	}

	return string(b), nil
}
