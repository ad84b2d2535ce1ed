// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	urlpkg "net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// DefaultChunkSize is the largest chunk a BodySource returned by
// Request.Source yields when given a non-positive chunk size.
const DefaultChunkSize = 16 << 10

// A Request is a single HTTP request: method, URL, header fields, and
// an optional body held either in memory or in a file.
//
// A Request is immutable once created. Accessors return copies, and the
// With methods return modified copies, so one Request may be shared
// freely between goroutines.
type Request struct {
	method string
	url    *urlpkg.URL
	header Headers
	body   []byte
	file   string
}

// New returns a new Request given a method, absolute URL, optional
// header fields, and optional body.
//
// An empty method means GET. The URL scheme must be http or https.
//
// Parameter body may be nil (empty body), a File naming a file to
// stream the body from, or any type accepted by BodyBytes, in which
// case it is buffered in memory.
func New(method, url string, header Headers, body interface{}) (*Request, error) {
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("txhttp/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("txhttp/request: unsupported protocol scheme %q", u.Scheme)
	}
	u.Host = removeEmptyPort(u.Host)
	if u.Hostname() == "" {
		return nil, errors.New("txhttp/request: missing host in URL")
	}
	if err = header.validate(); err != nil {
		return nil, err
	}

	r := &Request{
		method: method,
		url:    u,
		header: header.Clone(),
	}
	if f, ok := body.(File); ok {
		if f == "" {
			return nil, errors.New("txhttp/request: empty file name")
		}
		r.file = string(f)
		return r, nil
	}
	if r.body, err = BodyBytes(body); err != nil {
		return nil, err
	}
	return r, nil
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	return r.method
}

// URL returns a copy of the request URL.
func (r *Request) URL() *urlpkg.URL {
	u := *r.url
	if u.User != nil {
		user := *u.User
		u.User = &user
	}
	return &u
}

// Host returns the host name to connect to, without any port.
func (r *Request) Host() string {
	return r.url.Hostname()
}

// Port returns the port to connect to: the URL's port if it has one,
// otherwise the default port for the scheme.
func (r *Request) Port() int {
	if p := r.url.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if r.Secure() {
		return 443
	}
	return 80
}

// Secure reports whether the request uses TLS.
func (r *Request) Secure() bool {
	return r.url.Scheme == "https"
}

// Path returns the request target sent on the request line.
func (r *Request) Path() string {
	return r.url.RequestURI()
}

// Header returns a copy of the request header fields.
func (r *Request) Header() Headers {
	return r.header.Clone()
}

// Body returns a copy of the in-memory body, or nil if the body is
// empty or held in a file.
func (r *Request) Body() []byte {
	if len(r.body) == 0 {
		return nil
	}
	return bytes.Clone(r.body)
}

// File returns the name of the file holding the body, or the empty
// string if the body is held in memory.
func (r *Request) File() string {
	return r.file
}

// HasBody reports whether the request has a non-empty in-memory body
// or a file body.
func (r *Request) HasBody() bool {
	return len(r.body) > 0 || r.file != ""
}

// BodyBearing reports whether the request is sent with a body section,
// possibly empty. Requests with a body, and POST, PUT, and PATCH
// requests, are body-bearing.
func (r *Request) BodyBearing() bool {
	if r.HasBody() {
		return true
	}
	switch r.method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// Source opens the request body for reading in chunks of at most
// chunkSize bytes. A non-positive chunkSize means DefaultChunkSize.
// The caller must close the returned BodySource.
func (r *Request) Source(chunkSize int) (BodySource, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if r.file != "" {
		return openFileSource(r.file, chunkSize)
	}
	return &bufferSource{b: r.body, chunk: chunkSize}, nil
}

// WithHeader returns a copy of r with one more header field. It panics
// if the field is invalid.
func (r *Request) WithHeader(name, value string) *Request {
	h := r.header.Clone()
	h.Add(name, value)
	if err := h[len(h)-1:].validate(); err != nil {
		panic(err.Error())
	}
	r2 := *r
	r2.header = h
	return &r2
}

// WithBasicAuth returns a copy of r whose Authorization header uses
// HTTP Basic Authentication with the provided username and password.
//
// With HTTP Basic Authentication the provided username and password
// are not encrypted.
func (r *Request) WithBasicAuth(username, password string) *Request {
	h := r.header.Clone()
	h.Set("Authorization", "Basic "+basicAuth(username, password))
	r2 := *r
	r2.header = h
	return &r2
}

func (r *Request) String() string {
	return r.method + " " + r.url.String()
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

// validMethod reports whether method is an RFC 7230 token. The empty
// string never reaches here since it is interpreted as "GET".
func validMethod(method string) bool {
	return strings.IndexFunc(method, isNotToken) == -1
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
