// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package retry

import "time"

const (
	// DefaultBase is the delay after the first failed attempt.
	DefaultBase = time.Second
	// DefaultMax caps every delay.
	DefaultMax = 10 * time.Second
)

// Policy describes the backoff between attempts.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultPolicy returns the 1s base, 10s cap policy.
func DefaultPolicy() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax}
}

// Delay returns the wait after failed attempt k, counted from 1:
// min(Base * 2^(k-1), Max). The result is non-decreasing in k.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}

	limit := p.Max
	if limit <= 0 {
		limit = p.Base
	}

	d := p.Base
	for i := 1; i < attempt && d < limit; i++ {
		d *= 2
	}

	return min(d, limit)
}
