// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/runloop"
	"github.com/gogama/txhttp/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a scripted transport.Transport. Operations listed in
// pending return transport.ErrPending and wait for the test to fire a
// completion; operations listed in async return transport.ErrPending
// and complete on their own from another goroutine.
type fakeTransport struct {
	mu      sync.Mutex
	ctx     uint64
	cb      transport.StatusFunc
	next    transport.Handle
	calls   []string
	closed  []transport.Handle
	fail    map[string]error
	pending map[string]bool
	async   map[string]bool

	version string
	status  int
	header  string
	reads   []interface{}

	sentHeaders string
	total       int64
	written     []byte
	// writeLimit caps the bytes a WriteChunk call accepts. Zero means
	// no cap; a negative value accepts nothing.
	writeLimit int
}

func newFake() *fakeTransport {
	return &fakeTransport{
		fail:    map[string]error{},
		pending: map[string]bool{},
		async:   map[string]bool{},
		version: "HTTP/1.1",
		status:  200,
		header:  "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\n",
	}
}

// result records a call to op and returns its scripted outcome. The
// caller holds f.mu.
func (f *fakeTransport) result(op string) error {
	f.calls = append(f.calls, op)
	if err := f.fail[op]; err != nil {
		return err
	}
	if f.async[op] {
		go f.fire(transport.StatusRequestComplete, transport.StatusInfo{})
		return transport.ErrPending
	}
	if f.pending[op] {
		return transport.ErrPending
	}
	return nil
}

func (f *fakeTransport) handle() transport.Handle {
	f.next++
	return 100 + f.next
}

func (f *fakeTransport) fire(st transport.Status, info transport.StatusInfo) {
	f.mu.Lock()
	cb, ctx := f.cb, f.ctx
	f.mu.Unlock()
	cb(ctx, st, info)
}

func (f *fakeTransport) complete(err error) {
	f.fire(transport.StatusRequestComplete, transport.StatusInfo{Err: err})
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) Closed() []transport.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Handle(nil), f.closed...)
}

func (f *fakeTransport) OpenSession(userAgent string, ctx uint64, cb transport.StatusFunc) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx, f.cb = ctx, cb
	if err := f.result("OpenSession"); err != nil {
		return transport.NoHandle, err
	}
	return f.handle(), nil
}

func (f *fakeTransport) OpenConnection(session transport.Handle, host string, port int) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.result("OpenConnection"); err != nil {
		return transport.NoHandle, err
	}
	return f.handle(), nil
}

func (f *fakeTransport) OpenRequest(conn transport.Handle, method, path string, secure bool) (transport.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("conn=%d %s %s", conn, method, path))
	if err := f.result("OpenRequest"); err != nil {
		return transport.NoHandle, err
	}
	return f.handle(), nil
}

func (f *fakeTransport) SendRequest(req transport.Handle, headers string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("req=%d", req))
	f.sentHeaders = headers
	return f.result("SendRequest")
}

func (f *fakeTransport) SendRequestWithBody(req transport.Handle, headers string, total int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentHeaders, f.total = headers, total
	return f.result("SendRequestWithBody")
}

func (f *fakeTransport) WriteChunk(req transport.Handle, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(p)
	if f.writeLimit < 0 {
		n = 0
	} else if f.writeLimit > 0 && n > f.writeLimit {
		n = f.writeLimit
	}
	f.written = append(f.written, p[:n]...)
	if err := f.result("WriteChunk"); err != nil {
		return 0, err
	}
	return n, nil
}

func (f *fakeTransport) EndRequest(req transport.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result("EndRequest")
}

func (f *fakeTransport) QueryVersion(req transport.Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, f.fail["QueryVersion"]
}

func (f *fakeTransport) QueryStatus(req transport.Handle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.fail["QueryStatus"]
}

func (f *fakeTransport) QueryHeaders(req transport.Handle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.header, f.fail["QueryHeaders"]
}

func (f *fakeTransport) ReadChunk(req transport.Handle, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ReadChunk")
	if len(f.reads) == 0 {
		return 0, nil
	}
	r := f.reads[0]
	f.reads = f.reads[1:]
	switch r := r.(type) {
	case []byte:
		return copy(p, r), nil
	case string:
		return copy(p, r), nil
	case error:
		return 0, r
	default:
		panic(fmt.Sprintf("bad read %T", r))
	}
}

func (f *fakeTransport) Close(h transport.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, h)
	return nil
}

// recorder is a Listener that logs every call it receives.
type recorder struct {
	mu       sync.Mutex
	events   []string
	send     []progressCall
	recv     []progressCall
	body     []byte
	header   request.Headers
	terminal chan string

	onLoop *runloop.Loop
	hook   map[string]func()
}

type progressCall struct {
	Bytes, Total int64
	Percent      float64
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan string, 8), hook: map[string]func(){}}
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	h := r.hook[event]
	r.mu.Unlock()
	if h != nil {
		h()
	}
}

func (r *recorder) end(event string) {
	r.add(event)
	r.terminal <- event
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.body)
}

func (r *recorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case event := <-r.terminal:
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("no outcome, events so far: %v", r.Events())
		return ""
	}
}

func (r *recorder) OnConnecting()  { r.add("connecting") }
func (r *recorder) OnConnected()   { r.add("connected") }
func (r *recorder) OnRequestSent() { r.add("sent") }
func (r *recorder) OnResponseStatus(status int, header request.Headers) {
	r.mu.Lock()
	r.header = header
	r.mu.Unlock()
	r.add(fmt.Sprintf("status %d", status))
}
func (r *recorder) OnSendProgress(bytes, total int64, percent float64) {
	r.mu.Lock()
	r.send = append(r.send, progressCall{bytes, total, percent})
	r.mu.Unlock()
}
func (r *recorder) OnReceiveProgress(bytes, total int64, percent float64) {
	r.mu.Lock()
	r.recv = append(r.recv, progressCall{bytes, total, percent})
	r.mu.Unlock()
}
func (r *recorder) OnResponseBodyBytes(p []byte) {
	r.mu.Lock()
	r.body = append(r.body, p...)
	r.mu.Unlock()
	r.add(fmt.Sprintf("body %d", len(p)))
}
func (r *recorder) OnRedirect(u *url.URL) {
	if r.onLoop != nil && !r.onLoop.OnLoop() {
		panic("redirect delivered off the loop")
	}
	r.add("redirect " + u.String())
}
func (r *recorder) OnComplete()        { r.end("complete") }
func (r *recorder) OnCancel()          { r.end("cancel") }
func (r *recorder) OnTimeout()         { r.end("timeout") }
func (r *recorder) OnError(msg string) { r.end("error: " + msg) }
func (r *recorder) OnClosed()          { r.add("closed") }

type mockListener struct {
	mock.Mock
}

func newMockListener(t *testing.T) *mockListener {
	m := &mockListener{}
	m.Test(t)
	return m
}

func (m *mockListener) OnConnecting()  { m.Called() }
func (m *mockListener) OnConnected()   { m.Called() }
func (m *mockListener) OnRequestSent() { m.Called() }
func (m *mockListener) OnResponseStatus(status int, header request.Headers) {
	m.Called(status, header)
}
func (m *mockListener) OnSendProgress(bytes, total int64, percent float64) {
	m.Called(bytes, total, percent)
}
func (m *mockListener) OnReceiveProgress(bytes, total int64, percent float64) {
	m.Called(bytes, total, percent)
}
func (m *mockListener) OnResponseBodyBytes(p []byte) { m.Called(p) }
func (m *mockListener) OnComplete()                  { m.Called() }
func (m *mockListener) OnRedirect(u *url.URL)        { m.Called(u) }
func (m *mockListener) OnCancel()                    { m.Called() }
func (m *mockListener) OnTimeout()                   { m.Called() }
func (m *mockListener) OnError(msg string)           { m.Called(msg) }
func (m *mockListener) OnClosed()                    { m.Called() }

func startLoop(t *testing.T) *runloop.Loop {
	l := runloop.New()
	go func() {
		_ = l.Run(context.Background())
	}()
	t.Cleanup(l.Stop)
	return l
}

// onLoop returns the result of f, run on the loop.
func onLoop[T any](t *testing.T, l *runloop.Loop, f func() T) T {
	t.Helper()
	var v T
	require.NoError(t, l.Invoke(func() { v = f() }))
	return v
}

// flush waits for everything posted to l so far to run.
func flush(t *testing.T, l *runloop.Loop) {
	t.Helper()
	require.NoError(t, l.Invoke(func() {}))
}

func mustRequest(t *testing.T, method, rawURL string, body interface{}) *request.Request {
	t.Helper()
	r, err := request.New(method, rawURL, nil, body)
	require.NoError(t, err)
	return r
}

func newTestTransaction(t *testing.T, l *runloop.Loop, f *fakeTransport, r *request.Request, opts ...Option) *Transaction {
	tx := NewTransaction(l, r, append([]Option{WithTransport(f)}, opts...)...)
	t.Cleanup(tx.Close)
	return tx
}

func initiate(t *testing.T, l *runloop.Loop, tx *Transaction, ref ListenerRef) {
	t.Helper()
	require.NoError(t, l.Invoke(func() { tx.Initiate(ref) }))
}
