// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a Client to extend it with custom
// functionality.
type Event int

const (
	// BeforeExecutionStart identifies the event that occurs before the
	// execution starts.
	//
	// When Client fires BeforeExecutionStart, the execution is
	// non-nil but the only field that has been set is the request.
	BeforeExecutionStart Event = iota
	// BeforeAttempt identifies the event that occurs before each
	// transaction attempt during the execution.
	//
	// When Client fires BeforeAttempt, the execution's request field
	// is set to the request that WILL BE sent after all BeforeAttempt
	// handlers have finished. Handlers may replace it, for example with
	// a copy made by Request.WithHeader, to change what is sent.
	BeforeAttempt
	// AfterResponseStatus identifies the event that occurs once the
	// status line and headers of an attempt's response have arrived,
	// before any of the response body is delivered.
	//
	// When Client fires AfterResponseStatus, the execution's response
	// field is set. The handlers run on the attempt's loop goroutine,
	// so they must not block.
	//
	// AfterResponseStatus never fires if the attempt ended before the
	// headers arrived, but always fires once they do, regardless of
	// status code.
	AfterResponseStatus
	// AfterAttemptTimeout identifies the event that occurs after a
	// transaction attempt failed because an operation missed its
	// deadline.
	//
	// When Client fires AfterAttemptTimeout, the execution's error
	// field is set to the timeout error, and its attempt timeout
	// counter has been incremented.
	AfterAttemptTimeout
	// AfterAttempt identifies the event that occurs after a
	// transaction attempt is concluded, regardless of whether it
	// concluded successfully or not.
	//
	// When Client fires AfterAttempt, either the execution's body or
	// its error field is non-nil, never both. The response field may
	// be set even when the error is, if the attempt failed while the
	// body was being received.
	//
	// Note that AfterAttempt always fires on every attempt, and that it
	// runs before the retry policy is consulted for a retry decision.
	AfterAttempt
	// AfterExecutionTimeout identifies the event that occurs after the
	// deadline of the context passed to Client.Do is exceeded. The
	// deadline can be detected either at the end of an attempt, or
	// during the retry wait period.
	//
	// Note that AfterExecutionTimeout always occurs after AfterAttempt.
	AfterExecutionTimeout
	// AfterExecutionEnd identifies the event that occurs after the
	// execution ends.
	//
	// When Client fires AfterExecutionEnd, the execution is in the
	// same state it was in after the final attempt (and last
	// AfterAttempt event) EXCEPT that the end time is set to the time
	// the execution ended.
	AfterExecutionEnd
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeExecutionStart",
	"BeforeAttempt",
	"AfterResponseStatus",
	"AfterAttemptTimeout",
	"AfterAttempt",
	"AfterExecutionTimeout",
	"AfterExecutionEnd",
}

// Events returns a slice containing all events which can occur in an
// execution by Client, in the order in which they would occur.
func Events() []Event {
	return []Event{
		BeforeExecutionStart,
		BeforeAttempt,
		AfterResponseStatus,
		AfterAttemptTimeout,
		AfterAttempt,
		AfterExecutionTimeout,
		AfterExecutionEnd,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
