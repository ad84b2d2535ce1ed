// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/gogama/txhttp/transport"
)

// A Category is the transience category of an error, as reported by
// Categorize.
//
// Not means a new transaction attempt is very unlikely to fare better
// than the one that failed. Every other category means a retry has some
// prospect of success.
type Category int

const (
	// Not indicates any non-transient error.
	Not Category = iota
	// Timeout indicates a client-side timeout: an operation outlived
	// the deadline chosen by the timeout policy, or a socket deadline
	// expired. The server may be briefly slow, or a longer deadline may
	// succeed.
	//
	// An error is a Timeout if it, or any error in its chain, has a
	// Timeout method that reports true. Timeout takes precedence over
	// every other category.
	Timeout
	// ConnRefused indicates the remote host refused the connection
	// (ECONNREFUSED, or transport.ErrCannotConnect).
	//
	// Refusal is treated as transient because a service that is
	// starting or restarting refuses connections until it listens
	// again.
	ConnRefused
	// ConnReset indicates an established connection was torn down by
	// the peer (ECONNRESET or ECONNABORTED, or the transport codes
	// ErrConnectionReset and ErrConnectionAborted).
	//
	// Resets are common while a server instance is being replaced or
	// behind a load balancer, and a retry usually lands elsewhere.
	ConnReset
	// NameNotResolved indicates the host name could not be resolved
	// (transport.ErrNameNotResolved). Resolvers fail intermittently,
	// so a later lookup may succeed.
	NameNotResolved
)

var categoryNames = []string{"not", "timeout", "conn-refused", "conn-reset", "name-not-resolved"}

// String returns a short name for the category, suitable as a metric
// dimension.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

var syscallCategories = map[syscall.Errno]Category{
	syscall.ECONNREFUSED: ConnRefused,
	syscall.ECONNRESET:   ConnReset,
	syscall.ECONNABORTED: ConnReset,
}

var errnoCategories = map[transport.Errno]Category{
	transport.ErrCannotConnect:     ConnRefused,
	transport.ErrConnectionReset:   ConnReset,
	transport.ErrConnectionAborted: ConnReset,
	transport.ErrNameNotResolved:   NameNotResolved,
}

// Categorize returns the transience category of err. A nil error is
// Not transient. The whole chain of wrapped errors is examined, so
// errors wrapped in *url.Error or *txhttp.OpError are categorized by what
// they wrap.
func Categorize(err error) Category {
	if err == nil {
		return Not
	}

	if timedOut(err) {
		return Timeout
	}

	var sys syscall.Errno
	if errors.As(err, &sys) {
		if c, ok := syscallCategories[sys]; ok {
			return c
		}
	}

	var code transport.Errno
	if errors.As(err, &code) {
		if c, ok := errnoCategories[code]; ok {
			return c
		}
	}

	return Not
}

// timedOut reports whether any error in err's tree has a Timeout method
// that reports true. Unlike errors.As, it keeps looking past a Timeout
// method that reports false, since *url.Error answers for its wrapped
// error only one level deep.
func timedOut(err error) bool {
	for err != nil {
		if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		case interface{ Unwrap() []error }:
			for _, e := range x.Unwrap() {
				if timedOut(e) {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return false
}
