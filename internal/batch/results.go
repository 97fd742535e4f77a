// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
)

// Results maps each item id to its outcome.
type Results map[string]Outcome

// HasError reports whether any item failed.
func (r Results) HasError() bool {
	for _, o := range r {
		if o.Failed() {
			return true
		}
	}

	return false
}

// IDs returns the ids in input order.
func (r Results) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b string) int {
		return r[a].Index - r[b].Index
	})

	return ids
}

// Failed returns the ids of the failed items in input order.
func (r Results) Failed() []string {
	return slices.DeleteFunc(r.IDs(), func(id string) bool {
		return !r[id].Failed()
	})
}

// Err aggregates the item errors, each prefixed with its id. It returns nil
// when every item succeeded.
func (r Results) Err() error {
	var err error
	for _, id := range r.Failed() {
		err = multierror.Append(err, fmt.Errorf("%s: %w", id, r[id].Err))
	}

	return err
}
