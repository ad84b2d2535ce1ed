// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/transport"
)

// A Policy decides the deadline a transaction arms before each
// transport operation that may complete asynchronously.
//
// Parameter e is the client execution the transaction belongs to, or
// nil if the transaction is driven directly rather than by a client.
// Parameter op is the transport operation about to be issued.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Timeout(e *request.Execution, op transport.Op) time.Duration
}

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 30 seconds on each pending operation.
var DefaultPolicy Policy = Fixed(30 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(Never)

// Never is the timeout value meaning no deadline is armed.
const Never time.Duration = 1<<63 - 1

// Fixed constructs a timeout policy that uses the same value for every
// operation of every attempt.
func Fixed(d time.Duration) Policy {
	return policy([]time.Duration{d})
}

// Adaptive constructs a timeout policy that varies the timeout used
// within a client execution if the previous attempt timed out.
//
// Parameter usual is the timeout used for an initial attempt, for any
// retry where the immediately preceding attempt did not time out, and
// for transactions driven outside a client. Whether the preceding
// attempt timed out is read from the execution's RetryAfterTimeout.
//
// Parameter after contains timeout values the policy will return if
// the previous attempt timed out. If this was the first timeout of the
// execution, after[0] is returned; if the second, after[1], and so on.
// If more attempts have timed out within the execution than after has
// elements, then the last element of after is returned.
//
// Consider the following timeout policy:
//
//	p := Adaptive(200*time.Millisecond, time.Second, 10*time.Second)
//
// The policy p will use 200 milliseconds as the usual timeout but if
// the preceding attempt timed out and was the first timeout of the
// execution, it will use 1 second; and if the previous attempt timed
// out and was not the first attempt, it will use 10 seconds.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	p := make([]time.Duration, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []time.Duration

func (p policy) Timeout(e *request.Execution, _ transport.Op) time.Duration {
	if e == nil || !e.RetryAfterTimeout {
		return p[0]
	}

	i := e.AttemptTimeouts
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}

// PerOp constructs a timeout policy that uses a specific timeout for
// each operation listed in overrides and usual for every other one.
//
// Use PerOp when connecting should fail fast but reading a slow
// response should not, for example:
//
//	p := PerOp(time.Minute, map[transport.Op]time.Duration{
//		transport.OpOpenConnection: 5 * time.Second,
//	})
func PerOp(usual time.Duration, overrides map[transport.Op]time.Duration) Policy {
	p := perOp{usual: usual, overrides: make(map[transport.Op]time.Duration, len(overrides))}
	for op, d := range overrides {
		p.overrides[op] = d
	}
	return p
}

type perOp struct {
	usual     time.Duration
	overrides map[transport.Op]time.Duration
}

func (p perOp) Timeout(_ *request.Execution, op transport.Op) time.Duration {
	if d, ok := p.overrides[op]; ok {
		return d
	}
	return p.usual
}
