// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"net/url"
	"time"

	"github.com/gogama/txhttp/transient"
)

// An Execution represents the state of a synchronous Request execution
// by a client, which may span several transaction attempts.
//
// The Execution is updated as the execution progresses (for example
// when the response status becomes available, or when a retry is
// needed) and is ultimately returned as the return value of the
// execution.
//
// Timeout and retry policies and event handlers may set values on an
// Execution using its SetValue method and read them back using the
// Value method. However, they should treat the structure's exported
// field values as immutable and leave them unmodified.
type Execution struct {
	// Request specifies the request being executed. It is never nil.
	Request *Request

	// Start is the start time of the execution. It is assigned a
	// non-zero value when the execution starts, and this value remains
	// constant thereafter.
	Start time.Time

	// End is the end time of the execution. It contains the zero value
	// until the execution ends, when it is set to the current time.
	End time.Time

	// Attempt is the zero-based number of the current attempt during
	// the execution. It is set to zero on the initial attempt, one on
	// the first retry, and so on.
	Attempt int

	// AttemptTimeouts is the count of the number of times an attempt
	// timed out during the execution.
	AttemptTimeouts int

	// RetryAfterTimeout reports whether the current attempt is a retry
	// of an attempt that timed out. It stays false on the first attempt.
	RetryAfterTimeout bool

	// Racing is the number of transactions started so far in the
	// current attempt. It is 1 unless Client has a racing policy that
	// added racers to the attempt.
	Racing int

	// Response holds the status, version, and headers received in the
	// most recent attempt. It is nil if the most recent attempt ended
	// before the headers arrived, or if an attempt is underway and has
	// not received them yet.
	Response *Response

	// Redirects lists the locations announced by the transport while
	// following redirects during the most recent attempt.
	Redirects []*url.URL

	// Err indicates the error received while making the most recent
	// attempt. Whenever Err is non-nil, it has the type *url.Error.
	//
	// Once the execution has Ended, Err will not change and has the
	// same value as the error returned by the client.
	Err error

	// Body is the response body read during the most recent attempt.
	// The Body of a completed execution should be treated as invalid
	// unless Err is nil.
	Body []byte

	data context.Context
}

// StatusCode returns the status code received in the most recent
// attempt, or 0 if there is no response.
func (e *Execution) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.Status
}

// Header returns the response headers received in the most recent
// attempt. If there is no response, nil is returned, which is safe for
// all read-only operations.
func (e *Execution) Header() Headers {
	if e.Response == nil {
		return nil
	}

	return e.Response.Header
}

// Duration returns the duration of the execution.
//
// If the execution has not yet started, the duration is zero. If the
// execution has Ended, the duration returned is equal to End minus
// Start. Otherwise, it is equal to the current time minus Start.
func (e *Execution) Duration() time.Duration {
	if !e.Started() {
		return time.Duration(0)
	} else if !e.Ended() {
		return time.Since(e.Start)
	}

	return e.End.Sub(e.Start)
}

// Started indicates whether the execution has started.
func (e *Execution) Started() bool {
	return e.Start != (time.Time{})
}

// Ended indicates whether the execution has ended. Once it has, there
// will be no further changes to the execution.
func (e *Execution) Ended() bool {
	return e.End != (time.Time{})
}

// Timeout indicates whether Err currently contains a non-nil value
// which indicates a timeout.
func (e *Execution) Timeout() bool {
	cat := transient.Categorize(e.Err)
	return cat == transient.Timeout
}

// SetValue allows event handlers to store arbitrary data in the
// execution.
//
// The key must follow the same rules as the key parameter in
// context.WithValue, namely it:
//
// • it may not be nil;
//
// • it must be comparable;
//
// • it should not be of type string or any other built-in type to avoid
// collisions between different event handlers putting data into the
// same execution.
func (e *Execution) SetValue(key, value interface{}) {
	ctx := e.data
	if ctx == nil {
		ctx = context.Background()
	}

	e.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with this execution for key,
// or nil if there is no value associated with key.
func (e *Execution) Value(key interface{}) interface{} {
	ctx := e.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
