// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"context"
	"net/url"

	"github.com/gogama/txhttp/request"
)

// A Doer executes a request and returns the result. The Client type
// implements the Doer interface.
type Doer interface {
	// Do executes a request, which may involve several transaction
	// attempts, and returns the result.
	Do(ctx context.Context, r *request.Request) (*request.Execution, error)
}

// A Getter is an object that can do an HTTP GET. Client implements the
// Getter interface.
type Getter interface {
	// Get executes a GET request.
	Get(ctx context.Context, url string) (*request.Execution, error)
}

// A Header is an object that can do an HTTP HEAD. Client implements
// the Header interface.
type Header interface {
	// Head executes a HEAD request.
	Head(ctx context.Context, url string) (*request.Execution, error)
}

// A Poster is an object that can do an HTTP POST. Client implements the
// Poster interface.
type Poster interface {
	// Post executes a POST request. The body may be nil, a request.File,
	// or any type accepted by request.BodyBytes.
	Post(ctx context.Context, url, contentType string, body interface{}) (*request.Execution, error)
}

// A FormPoster is an object that can do an HTTP POST with the body
// holding URL-encoded form data. Client implements the FormPoster
// interface.
type FormPoster interface {
	// PostForm executes a POST request with form data.
	PostForm(ctx context.Context, url string, data url.Values) (*request.Execution, error)
}

// An Executor can make requests using all of the methods in this
// package's HTTP interfaces. The Client type implements Executor.
type Executor interface {
	Doer
	Getter
	Header
	Poster
	FormPoster
}

// Get uses the specified Doer to issue a GET to the specified URL.
func Get(ctx context.Context, d Doer, url string) (*request.Execution, error) {
	r, err := request.New("GET", url, nil, nil)
	if err != nil {
		return nil, err
	}

	return d.Do(ctx, r)
}

// Head uses the specified Doer to issue a HEAD to the specified URL.
func Head(ctx context.Context, d Doer, url string) (*request.Execution, error) {
	r, err := request.New("HEAD", url, nil, nil)
	if err != nil {
		return nil, err
	}

	return d.Do(ctx, r)
}

// Post uses the specified Doer to issue a POST to the specified URL,
// with the Content-Type header set to contentType.
//
// The body parameter may be nil for an empty body, a request.File to
// stream the body from a file, or any of the types supported by
// request.BodyBytes, namely: string; []byte; io.Reader; and
// io.ReadCloser.
func Post(ctx context.Context, d Doer, url, contentType string, body interface{}) (*request.Execution, error) {
	h := request.Headers{{Name: "Content-Type", Value: contentType}}
	r, err := request.New("POST", url, h, body)
	if err != nil {
		return nil, err
	}

	return d.Do(ctx, r)
}

// PostForm uses the specified Doer to issue a POST to the specified
// URL, with data's keys and values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
func PostForm(ctx context.Context, d Doer, url string, data url.Values) (*request.Execution, error) {
	return Post(ctx, d, url, "application/x-www-form-urlencoded", data.Encode())
}

// Inflate converts a Doer into an Executor. If the Doer is already an
// Executor, it is returned as-is. Otherwise the Doer is wrapped in an
// Executor implementation whose methods are built on the package-level
// functions Get, Head, Post, and PostForm.
func Inflate(d Doer) Executor {
	if d == nil {
		panic("txhttp: nil doer")
	}

	if e, ok := d.(Executor); ok {
		return e
	}

	return inflated{d}
}

type inflated struct {
	doer Doer
}

func (i inflated) Do(ctx context.Context, r *request.Request) (*request.Execution, error) {
	return i.doer.Do(ctx, r)
}

func (i inflated) Get(ctx context.Context, url string) (*request.Execution, error) {
	return Get(ctx, i.doer, url)
}

func (i inflated) Head(ctx context.Context, url string) (*request.Execution, error) {
	return Head(ctx, i.doer, url)
}

func (i inflated) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Execution, error) {
	return Post(ctx, i.doer, url, contentType, body)
}

func (i inflated) PostForm(ctx context.Context, url string, data url.Values) (*request.Execution, error) {
	return PostForm(ctx, i.doer, url, data)
}
