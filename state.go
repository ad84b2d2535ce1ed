// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

// A State is a step of a transaction's progression. Each non-terminal
// state names the transport work the transaction does next.
type State int

const (
	// Connect opens the session and the connection to the server.
	Connect State = iota
	// OpenRequest opens the request resource on the connection.
	OpenRequest
	// SendRequest sends the headers of a request without a body.
	SendRequest
	// SendRequestWithBody sends the headers of a request whose body
	// follows.
	SendRequestWithBody
	// PostGetData pulls the next request body chunk.
	PostGetData
	// PostSendData writes the pulled chunk.
	PostSendData
	// PostComplete ends the request after the last chunk.
	PostComplete
	// ResponseGetHeaders reads the response version, status, and
	// headers.
	ResponseGetHeaders
	// ResponseReceiveData reads the next response body chunk.
	ResponseReceiveData
	// ResponseWriteData hands the chunk just read to the listener.
	ResponseWriteData
	// Done is the terminal state of a successful transaction.
	Done
	// TimedOut is the terminal state of a transaction whose pending
	// operation outlived its deadline.
	TimedOut
	// Error is the terminal state of a failed transaction.
	Error
	stateSentinel
)

var stateNames = []string{
	"Connect",
	"OpenRequest",
	"SendRequest",
	"SendRequestWithBody",
	"PostGetData",
	"PostSendData",
	"PostComplete",
	"ResponseGetHeaders",
	"ResponseReceiveData",
	"ResponseWriteData",
	"Done",
	"TimedOut",
	"Error",
}

// String returns the name of the state.
func (s State) String() string {
	if s < 0 || s >= stateSentinel {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s is Done, TimedOut, or Error.
func (s State) Terminal() bool {
	return s == Done || s == TimedOut || s == Error
}

// facts holds what the transition function needs to know beyond the
// current state.
type facts struct {
	bodyBearing bool // request is sent with a body section
	emptyChunk  bool // last body chunk pulled, or response chunk read, was empty
	readPending bool // last response read is still in flight
}

// transition returns the state that follows s. It has no side effects;
// the engine assigns the result before doing the work of s, so that a
// completion arriving while that work is in flight resumes at the
// right place.
//
// Terminal states, and states outside the progression, are returned
// unchanged.
func transition(s State, f facts) State {
	switch s {
	case Connect:
		return OpenRequest
	case OpenRequest:
		if f.bodyBearing {
			return SendRequestWithBody
		}
		return SendRequest
	case SendRequest:
		return ResponseGetHeaders
	case SendRequestWithBody:
		return PostGetData
	case PostGetData:
		return PostSendData
	case PostSendData:
		if f.emptyChunk {
			return PostComplete
		}
		return PostGetData
	case PostComplete:
		return ResponseGetHeaders
	case ResponseGetHeaders:
		return ResponseReceiveData
	case ResponseReceiveData:
		if f.readPending {
			return ResponseReceiveData
		}
		return ResponseWriteData
	case ResponseWriteData:
		if f.emptyChunk {
			return Done
		}
		return ResponseReceiveData
	default:
		return s
	}
}
