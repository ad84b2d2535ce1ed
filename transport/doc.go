// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package transport defines the boundary between a transaction engine and
the asynchronous HTTP facility that actually moves bytes.

A Transport hands out opaque handles for sessions, connections, and
requests. Every operation that may not complete immediately returns
ErrPending; completion is then signaled later, possibly on another
goroutine, through the StatusFunc registered when the session was
opened. The StatusFunc is keyed by an integer context value (the
transaction id), never by a pointer, so that a late notification can be
correlated with a transaction that may no longer exist.

Failures are reported as Errno values. Errno implements error, carries
a human-readable message, and classifies itself with Kind so that
callers can treat certificate problems differently from ordinary
connectivity failures.

Package nettransport provides an implementation over the standard net
and crypto/tls packages.
*/
package transport
