// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"fmt"
	"net/http"
)

// A Version is an HTTP protocol version.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses an HTTP version string such as "HTTP/1.1".
func ParseVersion(s string) (Version, error) {
	major, minor, ok := http.ParseHTTPVersion(s)
	if !ok {
		return Version{}, fmt.Errorf("%w: bad version %q", ErrMalformedHeader, s)
	}
	return Version{Major: major, Minor: minor}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

// A Response holds the response pieces received by a transaction:
// protocol version, status code, and headers. It is produced once and
// not modified afterward.
type Response struct {
	Version Version
	Status  int
	Header  Headers
}

// StatusText returns the standard text for the response status code.
func (r *Response) StatusText() string {
	return http.StatusText(r.Status)
}
