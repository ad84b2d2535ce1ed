// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry decides whether txhttp.Client starts another
// transaction after an attempt ends, and how long it sleeps first.
//
// A Policy pairs a Decider with a Waiter. Deciders are small predicates
// over a request.Execution that compose with And, Or and Not; Waiters
// compute the sleep. For example, to retry 5xx responses and transient
// network failures up to three times within five seconds, backing off
// exponentially unless the server sends Retry-After:
//
//	decider := retry.Times(3).
//		And(retry.Before(5 * time.Second)).
//		And(retry.StatusCode(500, 502, 503).Or(retry.TransientErr))
//	waiter := retry.NewRetryAfterWaiter(
//		retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now()),
//		30*time.Second)
//	policy := retry.NewPolicy(decider, waiter)
//
// A transaction never retries by itself. Each retry is a fresh
// transaction started by the client.
package retry
