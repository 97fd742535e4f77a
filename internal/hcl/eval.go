// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package hcl

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// EnvVarName is the name of the variable that exposes the environment.
const EnvVarName = "env"

// Functions returns the functions available to expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
		"join":   stdlib.JoinFunc,
		"format": stdlib.FormatFunc,
	}
}

// NewEvalContext returns an evaluation context whose env object is built from
// environ, a list of KEY=VALUE strings as returned by os.Environ.
func NewEvalContext(environ []string) *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(environ))

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		vars[k] = cty.StringVal(v)
	}

	env := cty.EmptyObjectVal
	if len(vars) > 0 {
		env = cty.ObjectVal(vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			EnvVarName: env,
		},
		Functions: Functions(),
	}
}
