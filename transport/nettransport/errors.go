// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package nettransport

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/gogama/txhttp/transport"
)

// mapErr translates a network error into the transport code that best
// describes it.
func mapErr(err error) transport.Errno {
	var code transport.Errno
	if errors.As(err, &code) {
		return code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return transport.ErrOperationCancelled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return transport.ErrNameNotResolved
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return transport.ErrInvalidCA
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return transport.ErrCertCNInvalid
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		if invalid.Reason == x509.Expired {
			return transport.ErrCertDateInvalid
		}
		return transport.ErrInvalidCA
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transport.ErrTimeout
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return transport.ErrCannotConnect
	case errors.Is(err, syscall.ECONNRESET):
		return transport.ErrConnectionReset
	case errors.Is(err, syscall.ECONNABORTED), errors.Is(err, syscall.EPIPE):
		return transport.ErrConnectionAborted
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return transport.ErrConnectionAborted
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return transport.ErrCannotConnect
	}
	return transport.ErrInternal
}
