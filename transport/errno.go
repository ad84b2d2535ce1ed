// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"fmt"
)

// An Errno is a transport result code. The zero value is never used as
// an error.
type Errno uint32

const (
	// ErrPending is not a failure: it reports that an operation is in
	// flight and that its completion will be signaled later.
	ErrPending Errno = iota + 1
	ErrOutOfHandles
	ErrTimeout
	ErrExtended
	ErrInternal
	ErrInvalidURL
	ErrUnrecognizedScheme
	ErrNameNotResolved
	ErrProtocolNotFound
	ErrShutdown
	ErrInvalidOperation
	ErrOperationCancelled
	ErrIncorrectHandleType
	ErrIncorrectHandleState
	ErrCannotConnect
	ErrConnectionAborted
	ErrConnectionReset
	ErrInvalidProxyRequest
	ErrHTTPToHTTPSOnRedirect
	ErrHTTPSToHTTPOnRedirect
	ErrInvalidCA
	ErrCertCNInvalid
	ErrCertDateInvalid
	ErrCertRevoked
	ErrHeaderNotFound
	ErrDownlevelServer
	ErrInvalidServerResponse
	ErrInvalidHeader
	ErrRedirectFailed
)

var errnoMessages = map[Errno]string{
	ErrPending:               "The operation is in progress.",
	ErrOutOfHandles:          "No more handles could be generated at this time.",
	ErrTimeout:               "The request has timed out.",
	ErrExtended:              "An extended error was returned from the server.",
	ErrInternal:              "An internal error has occurred.",
	ErrInvalidURL:            "The URL is invalid.",
	ErrUnrecognizedScheme:    "The URL scheme could not be recognized or is not supported.",
	ErrNameNotResolved:       "The server name could not be resolved.",
	ErrProtocolNotFound:      "The requested protocol could not be located.",
	ErrShutdown:              "The transport is being shut down.",
	ErrInvalidOperation:      "The requested operation is invalid.",
	ErrOperationCancelled:    "The operation was canceled, usually because the handle on which the request was operating was closed before the operation completed.",
	ErrIncorrectHandleType:   "The type of handle supplied is incorrect for this operation.",
	ErrIncorrectHandleState:  "The requested operation cannot be carried out because the handle supplied is not in the correct state.",
	ErrCannotConnect:         "The attempt to connect to the server failed.",
	ErrConnectionAborted:     "The connection with the server has been terminated.",
	ErrConnectionReset:       "The connection with the server has been reset.",
	ErrInvalidProxyRequest:   "The request to the proxy was invalid.",
	ErrHTTPToHTTPSOnRedirect: "The application is moving from a non-SSL to an SSL connection because of a redirect.",
	ErrHTTPSToHTTPOnRedirect: "The application is moving from an SSL to a non-SSL connection because of a redirect.",
	ErrInvalidCA:             "SSL error: valid certificate chain, untrusted root",
	ErrCertCNInvalid:         "SSL error: the certificate common name is incorrect",
	ErrCertDateInvalid:       "SSL error: certificate expired",
	ErrCertRevoked:           "SSL error: certificate revoked",
	ErrHeaderNotFound:        "The requested header could not be located.",
	ErrDownlevelServer:       "The server did not return any headers.",
	ErrInvalidServerResponse: "The server response could not be parsed.",
	ErrInvalidHeader:         "The supplied header is invalid.",
	ErrRedirectFailed:        "The redirection failed because either the scheme changed or all attempts made to redirect failed.",
}

// Error returns the human-readable message for the code. Unrecognized
// codes are formatted as "unknown transport error <code>".
func (e Errno) Error() string {
	if msg, ok := errnoMessages[e]; ok {
		return msg
	}
	return fmt.Sprintf("unknown transport error %d", uint32(e))
}

// Timeout reports whether the code is ErrTimeout. It makes Errno
// compatible with the Timeout() convention used by net.Error.
func (e Errno) Timeout() bool {
	return e == ErrTimeout
}

// Kind classifies the code.
func (e Errno) Kind() Kind {
	switch e {
	case ErrTimeout:
		return KindTimeout
	case ErrInvalidCA, ErrCertCNInvalid, ErrCertDateInvalid, ErrCertRevoked:
		return KindCertificate
	case ErrDownlevelServer, ErrInvalidServerResponse, ErrHeaderNotFound:
		return KindProtocol
	default:
		return KindTransport
	}
}

// A Kind is the broad class of a transaction failure.
type Kind int

const (
	// KindTransport covers connection, name resolution, and handle
	// failures.
	KindTransport Kind = iota
	// KindCertificate is the subset of transport failures caused by
	// TLS certificate validation: untrusted root, name mismatch,
	// expiry, or revocation.
	KindCertificate
	// KindTimeout indicates a pending operation outlived its deadline.
	KindTimeout
	// KindProtocol indicates malformed or absent response headers or
	// an unparsable status.
	KindProtocol
	// KindCancelled indicates the caller cancelled the transaction.
	KindCancelled
)

var kindNames = []string{"transport", "certificate", "timeout", "protocol", "cancelled"}

// String returns the name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf returns the kind of the first error in err's chain that has a
// Kind method. The second return value is false if there is none.
func KindOf(err error) (Kind, bool) {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return KindTransport, false
}
