// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogama/txhttp"
	"github.com/gogama/txhttp/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func echoServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Agent", r.UserAgent())
		w.Header().Set("X-Test", r.Header.Get("X-Test"))
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	})
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hello, world")
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hello", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	server := echoServer(t)

	t.Run("get", func(t *testing.T) {
		stdout, stderr, err := run(t, context.Background(), server.URL+"/hello")
		require.NoError(t, err)
		assert.Equal(t, "hello, world", stdout)
		assert.Empty(t, stderr)
	})
	t.Run("include headers", func(t *testing.T) {
		stdout, _, err := run(t, context.Background(), "-i", "-A", "tester/1", server.URL+"/echo")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stdout, "HTTP/1.1 200 OK\r\n"), stdout)
		assert.Contains(t, stdout, "X-Method: GET\r\n")
		assert.Contains(t, stdout, "X-Agent: tester/1\r\n")
		assert.True(t, strings.HasSuffix(stdout, "\r\n\r\n"), stdout)
	})
	t.Run("post data", func(t *testing.T) {
		stdout, stderr, err := run(t, context.Background(),
			"-i", "--progress", "-H", "X-Test: yes", "-d", "ping", server.URL+"/echo")
		require.NoError(t, err)
		assert.Contains(t, stdout, "X-Method: POST\r\n")
		assert.Contains(t, stdout, "X-Test: yes\r\n")
		assert.True(t, strings.HasSuffix(stdout, "\r\n\r\nping"), stdout)
		assert.Contains(t, stderr, "sent 4/4 bytes (100%)")
		assert.Contains(t, stderr, "received 4/4 bytes (100%)")
	})
	t.Run("put file", func(t *testing.T) {
		name := filepath.Join(t.TempDir(), "body")
		require.NoError(t, os.WriteFile(name, bytes.Repeat([]byte("z"), 40000), 0o600))
		stdout, _, err := run(t, context.Background(), "-X", "put", "--data-file", name, server.URL+"/echo")
		require.NoError(t, err)
		assert.Equal(t, 40000, len(stdout))
	})
	t.Run("redirect", func(t *testing.T) {
		stdout, stderr, err := run(t, context.Background(), server.URL+"/moved")
		require.NoError(t, err)
		assert.Equal(t, "hello, world", stdout)
		assert.Equal(t, "redirected to "+server.URL+"/hello\n", stderr)
	})
	t.Run("redirect disabled", func(t *testing.T) {
		stdout, stderr, err := run(t, context.Background(), "-i", "--max-redirects", "0", server.URL+"/moved")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stdout, "HTTP/1.1 301 Moved Permanently\r\n"), stdout)
		assert.Empty(t, stderr)
	})
	t.Run("timeout", func(t *testing.T) {
		_, _, err := run(t, context.Background(), "--timeout", "50ms", server.URL+"/slow")
		require.Error(t, err)
		assert.ErrorIs(t, err, txhttp.ErrTimedOut)
	})
	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, _, err := run(t, ctx, server.URL+"/slow")
		assert.ErrorIs(t, err, txhttp.ErrCancelled)
	})
	t.Run("cannot connect", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		_, _, err := run(t, context.Background(), dead.URL)
		assert.ErrorIs(t, err, transport.ErrCannotConnect)
	})
	t.Run("verbose", func(t *testing.T) {
		_, stderr, err := run(t, context.Background(), "-v", server.URL+"/hello")
		require.NoError(t, err)
		assert.Contains(t, stderr, "initiate")
	})
}

func TestFetch_WriteError(t *testing.T) {
	server := echoServer(t)
	o := &options{timeout: time.Second, userAgent: "t"}
	err := fetch(context.Background(), o, server.URL+"/hello", failingWriter{}, io.Discard)
	assert.EqualError(t, err, "disk full")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestOptions_Request(t *testing.T) {
	testCases := []struct {
		name    string
		o       options
		method  string
		wantErr string
	}{
		{name: "default get", o: options{}, method: "GET"},
		{name: "data implies post", o: options{data: "x"}, method: "POST"},
		{name: "explicit method", o: options{method: "delete"}, method: "DELETE"},
		{name: "file body", o: options{dataFile: "f", method: "PUT"}, method: "PUT"},
		{name: "bad header", o: options{headers: []string{"nocolon"}}, wantErr: `bad header "nocolon", want "Name: value"`},
		{name: "empty header name", o: options{headers: []string{": v"}}, wantErr: `bad header ": v", want "Name: value"`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			r, err := testCase.o.request("http://example.com/")
			if testCase.wantErr != "" {
				assert.EqualError(t, err, testCase.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.method, r.Method())
		})
	}
}

func TestRootCmd_Args(t *testing.T) {
	_, _, err := run(t, context.Background())
	assert.Error(t, err)
	_, _, err = run(t, context.Background(), "-d", "a", "--data-file", "b", "http://example.com/")
	assert.Error(t, err)
}
