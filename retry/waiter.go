// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogama/txhttp/request"
)

// A Waiter computes how long txhttp.Client sleeps between a failed
// transaction attempt and the next one. It is only consulted after the
// policy's Decider has asked for a retry.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

// DefaultWaiter backs off exponentially with full jitter, from 50
// milliseconds up to at most 1 second.
var DefaultWaiter = NewExpWaiter(50*time.Millisecond, 1*time.Second, time.Now())

// NewFixedWaiter returns a Waiter that always waits d.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter returns a Waiter that backs off exponentially using the
// "Full Jitter" formula from
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter.
//
// The ceiling for attempt n is base*2^n, clamped to max. Base must be
// positive and max must be at least base.
//
// With a nil jitter the Waiter returns the ceiling itself. Otherwise
// the wait is drawn uniformly from [0, ceiling) using jitter, which may
// be a seed (time.Time, int, or int64), a rand.Source, or a *rand.Rand.
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("txhttp/retry: base must be positive")
	}
	if max < base {
		panic("txhttp/retry: max must be at least base")
	}
	return &expWaiter{
		base: base,
		max:  max,
		rand: jitterToRand(jitter),
	}
}

type expWaiter struct {
	base time.Duration
	max  time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// ceiling returns min(base*2^attempt, max) without overflowing.
func (w *expWaiter) ceiling(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := w.base
	for i := 0; i < attempt; i++ {
		if d >= w.max/2 {
			return w.max
		}
		d *= 2
	}
	if d > w.max {
		return w.max
	}
	return d
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	ceil := w.ceiling(e.Attempt)
	if w.rand == nil {
		return ceil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Duration(w.rand.Int63n(int64(ceil)))
}

func jitterToRand(jitter interface{}) *rand.Rand {
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		return rand.New(rand.NewSource(j.UnixNano()))
	case int:
		return rand.New(rand.NewSource(int64(j)))
	case int64:
		return rand.New(rand.NewSource(j))
	case *rand.Rand:
		if j == nil {
			panic("txhttp/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		return rand.New(j)
	default:
		panic("txhttp/retry: invalid jitter type")
	}
}

// NewRetryAfterWaiter returns a Waiter that honors the Retry-After
// header of the most recent response, as sent with 429 and 503
// responses. The header may hold a number of seconds or an HTTP date.
// The wait is capped at max. When there is no usable header, the
// fallback Waiter decides.
func NewRetryAfterWaiter(fallback Waiter, max time.Duration) Waiter {
	if fallback == nil {
		panic("txhttp/retry: nil fallback waiter")
	}
	if max < 0 {
		panic("txhttp/retry: negative max")
	}
	return &retryAfterWaiter{fallback: fallback, max: max, now: time.Now}
}

type retryAfterWaiter struct {
	fallback Waiter
	max      time.Duration
	now      func() time.Time
}

func (w *retryAfterWaiter) Wait(e *request.Execution) time.Duration {
	d, ok := retryAfter(e.Header().Get("Retry-After"), w.now())
	if !ok {
		return w.fallback.Wait(e)
	}
	if d > w.max {
		return w.max
	}
	return d
}

func retryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		if secs > int64(time.Duration(1<<63-1)/time.Second) {
			return time.Duration(1<<63 - 1), true
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	if d := t.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
