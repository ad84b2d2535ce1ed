// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import "time"

// A Policy tells txhttp.Client whether to start another transaction
// after an attempt ends, and how long to sleep first. A Policy is a
// Decider paired with a Waiter; NewPolicy builds one from the two
// halves.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Decider
	Waiter
}

// DefaultRetryAfterMax caps the wait DefaultPolicy will take from a
// server's Retry-After header.
const DefaultRetryAfterMax = 10 * time.Second

// DefaultPolicy retries per DefaultDecider. It honors Retry-After up to
// DefaultRetryAfterMax and otherwise waits per DefaultWaiter.
var DefaultPolicy = NewPolicy(DefaultDecider, NewRetryAfterWaiter(DefaultWaiter, DefaultRetryAfterMax))

// Never never retries.
var Never = NewPolicy(Times(0), NewFixedWaiter(0))

// NewPolicy pairs d and w into a Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("txhttp/retry: nil decider")
	}
	if w == nil {
		panic("txhttp/retry: nil waiter")
	}
	return &policy{Decider: d, Waiter: w}
}

type policy struct {
	Decider
	Waiter
}
