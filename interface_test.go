// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogama/txhttp/request"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

var testCtx = context.WithValue(context.Background(), ctxKey{}, "test")

func TestGet(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Execution{}
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "GET" && r.URL().String() == "http://foo"
		})).Return(expected, nil).Once()
		e, err := Get(testCtx, m, "http://foo")
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		e, err := Get(testCtx, m, ":::")
		assert.Nil(t, e)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
	})
	t.Run("error unsupported scheme", func(t *testing.T) {
		m := newMockDoer(t)
		e, err := Get(testCtx, m, "ftp://foo")
		assert.Nil(t, e)
		assert.EqualError(t, err, `txhttp/request: unsupported protocol scheme "ftp"`)
		m.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
	})
}

func TestHead(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Execution{}
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "HEAD" && r.URL().String() == "https://bar/x"
		})).Return(expected, nil).Once()
		e, err := Head(testCtx, m, "https://bar/x")
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		e, err := Head(testCtx, m, ":::")
		assert.Nil(t, e)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
	})
}

func TestPost(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		expected := &request.Execution{}
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "POST" && r.URL().String() == "http://baz" &&
				r.Header().Get("Content-Type") == "ham" &&
				string(r.Body()) == "eggs"
		})).Return(expected, nil).Once()
		e, err := Post(testCtx, m, "http://baz", "ham", "eggs")
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("OK file body", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "body")
		require.NoError(t, os.WriteFile(name, []byte("spam"), 0o600))
		expected := &request.Execution{}
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.File() == name && r.Body() == nil
		})).Return(expected, nil).Once()
		e, err := Post(testCtx, m, "http://baz", "text/plain", request.File(name))
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("error invalid URL", func(t *testing.T) {
		m := newMockDoer(t)
		e, err := Post(testCtx, m, ":::", "text/plain", []byte{'a', 'b', 'c'})
		assert.Nil(t, e)
		assert.Error(t, err)
		m.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
	})
	t.Run("error invalid body", func(t *testing.T) {
		m := newMockDoer(t)
		e, err := Post(testCtx, m, "http://baz", "text/plain", 123)
		assert.Nil(t, e)
		assert.EqualError(t, err, "txhttp/request: invalid type (for body use nil, string, []byte, File, io.Reader or io.ReadCloser)")
		m.AssertNotCalled(t, "Do", mock.Anything, mock.Anything)
	})
}

func TestPostForm(t *testing.T) {
	expected := &request.Execution{}
	m := newMockDoer(t)
	m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
		return r.Method() == "POST" && r.URL().String() == "http://poster/boy" &&
			r.Header().Get("Content-Type") == "application/x-www-form-urlencoded" &&
			len(r.Body()) == 0
	})).Return(expected, nil).Once()
	e, err := PostForm(testCtx, m, "http://poster/boy", url.Values{})
	assert.Same(t, expected, e)
	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestInflate(t *testing.T) {
	t.Run("Inflate", func(t *testing.T) {
		t.Run("nil doer", func(t *testing.T) {
			assert.PanicsWithValue(t, "txhttp: nil doer", func() {
				Inflate(nil)
			})
		})
		t.Run("already an Executor", func(t *testing.T) {
			cl := &Client{}
			x := Inflate(cl)
			assert.Same(t, cl, x)
		})
		t.Run("not yet an Executor", func(t *testing.T) {
			m := newMockDoer(t)
			x := Inflate(m)
			require.IsType(t, inflated{}, x)
			assert.Same(t, m, x.(inflated).doer)
		})
	})
	expected := &request.Execution{}
	t.Run("Do", func(t *testing.T) {
		r, err := request.New("PUT", "http://www.randomcollections.com/widgets/1", nil, "foo")
		require.NoError(t, err)
		m := newMockDoer(t)
		m.On("Do", testCtx, r).Return(expected, nil).Once()
		x := Inflate(m)
		e, err := x.Do(testCtx, r)
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("Get", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "GET" && r.URL().String() == "http://bar"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		e, err := x.Get(testCtx, "http://bar")
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("Head", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "HEAD" && r.URL().String() == "http://baz"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		e, err := x.Head(testCtx, "http://baz")
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("Post", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "POST" && r.URL().String() == "http://ham" &&
				r.Header().Get("Content-Type") == "eggs" &&
				!r.HasBody() && r.BodyBearing()
		})).Return(expected, nil).Once()
		x := Inflate(m)
		e, err := x.Post(testCtx, "http://ham", "eggs", nil)
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
	t.Run("PostForm", func(t *testing.T) {
		m := newMockDoer(t)
		m.On("Do", testCtx, mock.MatchedBy(func(r *request.Request) bool {
			return r.Method() == "POST" && r.URL().String() == "http://form" &&
				r.Header().Get("Content-Type") == "application/x-www-form-urlencoded" &&
				string(r.Body()) == "x=y"
		})).Return(expected, nil).Once()
		x := Inflate(m)
		e, err := x.PostForm(testCtx, "http://form", url.Values{"x": []string{"y"}})
		assert.Same(t, expected, e)
		assert.NoError(t, err)
		m.AssertExpectations(t)
	})
}

type mockDoer struct {
	mock.Mock
}

func newMockDoer(t *testing.T) *mockDoer {
	m := &mockDoer{}
	m.Test(t)
	return m
}

func (m *mockDoer) Do(ctx context.Context, r *request.Request) (*request.Execution, error) {
	args := m.Called(ctx, r)
	e := args.Get(0)
	err := args.Error(1)
	if e == nil {
		return nil, err
	}
	return e.(*request.Execution), err
}
