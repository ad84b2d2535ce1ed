// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import "errors"

// A Handle identifies a session, connection, or request owned by a
// Transport. The zero value, NoHandle, never identifies anything.
type Handle uint64

// NoHandle is the invalid handle.
const NoHandle Handle = 0

// An Op identifies a transport operation. It is used to pick a deadline
// for operations that may be pending, and to label errors.
type Op int

const (
	// OpOpenSession identifies Transport.OpenSession.
	OpOpenSession Op = iota
	// OpOpenConnection identifies Transport.OpenConnection.
	OpOpenConnection
	// OpOpenRequest identifies Transport.OpenRequest.
	OpOpenRequest
	// OpSendRequest identifies Transport.SendRequest and
	// Transport.SendRequestWithBody.
	OpSendRequest
	// OpWrite identifies Transport.WriteChunk.
	OpWrite
	// OpEndRequest identifies Transport.EndRequest.
	OpEndRequest
	// OpQuery identifies the response query methods QueryVersion,
	// QueryStatus, and QueryHeaders.
	OpQuery
	// OpRead identifies Transport.ReadChunk.
	OpRead
	// OpReadBody identifies reading the local request body source. It
	// is not a transport call, but failures in it are reported the same
	// way.
	OpReadBody
	opSentinel
)

var opNames = []string{
	"open session",
	"open connection",
	"open request",
	"send request",
	"write",
	"end request",
	"query response",
	"read",
	"read request body",
}

// Ops returns every operation, in the order a request with a body
// would first use them.
func Ops() []Op {
	ops := make([]Op, opSentinel)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// String returns a short lower-case description of the operation.
func (op Op) String() string {
	if op < 0 || op >= opSentinel {
		return "unknown op"
	}
	return opNames[op]
}

// A Status identifies a notification delivered through a StatusFunc.
//
// Only StatusHandleCreated, StatusRedirect, and StatusRequestComplete
// affect a transaction; the others are informational.
type Status int

const (
	StatusResolvingName Status = iota
	StatusNameResolved
	StatusConnectingToServer
	StatusConnectedToServer
	StatusSendingRequest
	StatusRequestSent
	StatusReceivingResponse
	StatusResponseReceived
	// StatusRedirect reports that the transport is following a
	// redirect. StatusInfo.URL holds the new location.
	StatusRedirect
	// StatusHandleCreated reports the handle produced by an
	// OpenConnection or OpenRequest call that returned ErrPending.
	// StatusInfo.Handle holds it.
	StatusHandleCreated
	// StatusRequestComplete reports completion of the operation that
	// most recently returned ErrPending. StatusInfo.Err is nil on
	// success.
	StatusRequestComplete
	StatusClosingConnection
	StatusConnectionClosed
	StatusHandleClosing
	statusSentinel
)

var statusNames = []string{
	"ResolvingName",
	"NameResolved",
	"ConnectingToServer",
	"ConnectedToServer",
	"SendingRequest",
	"RequestSent",
	"ReceivingResponse",
	"ResponseReceived",
	"Redirect",
	"HandleCreated",
	"RequestComplete",
	"ClosingConnection",
	"ConnectionClosed",
	"HandleClosing",
}

// String returns the name of the status.
func (st Status) String() string {
	if st < 0 || st >= statusSentinel {
		return "Unknown"
	}
	return statusNames[st]
}

// StatusInfo carries the payload of a status notification. Which fields
// are set depends on the Status.
type StatusInfo struct {
	Handle Handle
	URL    string
	Bytes  int
	Err    error
}

// A StatusFunc receives status notifications for every handle opened
// under one session. It may be called on any goroutine, including
// after the session's handles have been closed, and must not block.
//
// The ctx parameter is the value passed to OpenSession.
type StatusFunc func(ctx uint64, st Status, info StatusInfo)

// A Transport performs non-blocking HTTP/1.1 exchanges.
//
// Every method may return nil (success), ErrPending (the operation is
// in flight and a StatusRequestComplete or StatusHandleCreated will
// follow), or any other error (hard failure). Methods never block the
// calling goroutine on network I/O.
//
// A pending WriteChunk that later completes successfully has written
// the whole chunk; the caller must leave the chunk unmodified until
// then.
//
// Implementations must be safe for concurrent use by multiple
// goroutines, although calls on any one request handle are serialized
// by the caller.
type Transport interface {
	OpenSession(userAgent string, ctx uint64, cb StatusFunc) (Handle, error)
	OpenConnection(session Handle, host string, port int) (Handle, error)
	OpenRequest(conn Handle, method, path string, secure bool) (Handle, error)
	// SendRequest sends the request line and headers of a request
	// without a body. The headers parameter is a CRLF-separated header
	// block, without the request line and without the final blank line.
	SendRequest(req Handle, headers string) error
	// SendRequestWithBody sends the request line and headers of a
	// request whose body, of length total, follows through WriteChunk
	// and is finished with EndRequest.
	SendRequestWithBody(req Handle, headers string, total int64) error
	WriteChunk(req Handle, p []byte) (int, error)
	EndRequest(req Handle) error
	QueryVersion(req Handle) (string, error)
	QueryStatus(req Handle) (int, error)
	// QueryHeaders returns the raw response header block, including the
	// status line, with CRLF line endings.
	QueryHeaders(req Handle) (string, error)
	// ReadChunk copies available response body bytes into p. It
	// returns 0 and a nil error once the body is exhausted, and
	// ErrPending if no bytes are available yet.
	ReadChunk(req Handle, p []byte) (int, error)
	Close(h Handle) error
}

// IsPending reports whether err indicates an operation in flight.
func IsPending(err error) bool {
	return errors.Is(err, ErrPending)
}
