// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"errors"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/transport"
)

var (
	// ErrCancelled is the cause recorded for a transaction that was
	// cancelled before reaching a terminal state.
	ErrCancelled = errors.New("txhttp: transaction cancelled")
	// ErrTimedOut is the cause recorded for a transaction whose pending
	// operation outlived its deadline.
	ErrTimedOut error = transport.ErrTimeout
)

// An OpError records why a transaction did not complete, and the
// operation in progress when it stopped.
type OpError struct {
	Op  transport.Op
	Err error
}

func (e *OpError) Error() string {
	return e.Op.String() + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the transaction timed out.
func (e *OpError) Timeout() bool {
	return errors.Is(e.Err, transport.ErrTimeout)
}

// Kind classifies the error.
func (e *OpError) Kind() transport.Kind {
	if errors.Is(e.Err, ErrCancelled) {
		return transport.KindCancelled
	}
	if k, ok := transport.KindOf(e.Err); ok {
		return k
	}
	if errors.Is(e.Err, request.ErrMalformedHeader) {
		return transport.KindProtocol
	}
	return transport.KindTransport
}

// message returns the text passed to Listener.OnError: the message of
// the underlying cause, without the operation prefix.
func message(err error) string {
	var e *OpError
	if errors.As(err, &e) {
		return e.Err.Error()
	}
	return err.Error()
}
