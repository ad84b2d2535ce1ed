// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"io"
	"os"
)

const badBodyTypeMsg = "txhttp/request: invalid type (for body use nil, " +
	"string, []byte, File, io.Reader or io.ReadCloser)"

// File names a file whose contents are a request body. The file is
// opened when the body is first read, not when the Request is created.
type File string

// BodyBytes converts a generic body parameter to a byte slice for use
// as an in-memory request body.
//
// The body parameter may be nil, or it may be a string, []byte,
// io.Reader, or io.ReadCloser. The conversion logic is:
//
// • If body is nil, a nil byte slice and no error is returned.
//
// • If body is a []byte, body itself and no error is returned.
//
// • If body is a string, the built-in conversion from string to byte
// slice, and no error, is returned.
//
// • If body is an io.Reader or io.ReadCloser, the result of reading
// the whole contents of the reader (and closing it if it implements
// Closer) is returned. If reading from the reader (and closing it if
// applicable) causes an error, the return value is a nil byte slice
// and the error.
//
// • If body is any other type than those listed above, a nil byte slice
// and an error is returned. File is not accepted by BodyBytes.
func BodyBytes(body interface{}) ([]byte, error) {
	switch x := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(x), nil
	case []byte:
		return x, nil
	case io.ReadCloser:
		b, err := io.ReadAll(x)
		if err != nil {
			return nil, err
		}
		err = x.Close()
		if err != nil {
			return nil, err
		}
		return b, nil
	case io.Reader:
		return BodyBytes(io.NopCloser(x))
	default:
		return nil, errors.New(badBodyTypeMsg)
	}
}

// A BodySource yields a request body in chunks of bounded size.
//
// Next returns the next chunk, or an empty chunk once the body is
// exhausted. The returned slice is only valid until the next call to
// Next or Close.
type BodySource interface {
	Size() int64
	Next() ([]byte, error)
	Close() error
}

type bufferSource struct {
	b     []byte
	off   int
	chunk int
}

func (s *bufferSource) Size() int64 {
	return int64(len(s.b))
}

func (s *bufferSource) Next() ([]byte, error) {
	n := len(s.b) - s.off
	if n > s.chunk {
		n = s.chunk
	}
	c := s.b[s.off : s.off+n]
	s.off += n
	return c, nil
}

func (s *bufferSource) Close() error {
	return nil
}

type fileSource struct {
	f    *os.File
	size int64
	off  int64
	buf  []byte
}

func openFileSource(name string, chunk int) (*fileSource, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileSource{f: f, size: fi.Size(), buf: make([]byte, chunk)}, nil
}

func (s *fileSource) Size() int64 {
	return s.size
}

func (s *fileSource) Next() ([]byte, error) {
	if s.f == nil {
		return nil, os.ErrClosed
	}
	rem := s.size - s.off
	if rem <= 0 {
		return s.buf[:0], nil
	}
	p := s.buf
	if rem < int64(len(p)) {
		p = p[:rem]
	}
	n, err := s.f.ReadAt(p, s.off)
	if err == io.EOF && n > 0 {
		err = nil
	}
	if err == io.EOF {
		// Truncated since Stat; treat as end of body.
		return s.buf[:0], nil
	}
	if err != nil {
		return nil, err
	}
	s.off += int64(n)
	return p[:n], nil
}

func (s *fileSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
