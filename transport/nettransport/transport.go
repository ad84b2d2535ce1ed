// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package nettransport implements transport.Transport over the standard
// net and crypto/tls packages.
//
// Each request handle runs its network work on its own goroutine and
// reports completion through the session's StatusFunc, so no method of
// Transport blocks on the network. Requests are HTTP/1.1, one per
// connection. Redirects are followed for requests without a body.
package nettransport

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogama/txhttp/transport"
	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout is the connect timeout used when
	// Config.DialTimeout is zero.
	DefaultDialTimeout = 30 * time.Second
	// DefaultMaxRedirects is the redirect limit used when
	// Config.MaxRedirects is zero.
	DefaultMaxRedirects = 10
)

// Config configures a Transport. The zero value is ready to use.
type Config struct {
	// DialTimeout bounds establishing the TCP connection, independently
	// of any deadline the caller arms.
	DialTimeout time.Duration
	// IOTimeout, if positive, bounds every individual socket read and
	// write.
	IOTimeout time.Duration
	// TLSConfig is cloned for every secure connection. ServerName is
	// filled in from the host when empty.
	TLSConfig *tls.Config
	// MaxRedirects limits the redirects followed for one request. A
	// negative value disables following redirects.
	MaxRedirects int
	// Logger receives connection lifecycle messages at debug level.
	Logger *zap.Logger
}

// A Transport is a transport.Transport backed by real sockets. Create
// one with New.
type Transport struct {
	cfg  Config
	log  *zap.Logger
	next atomic.Uint64

	mu      sync.Mutex
	handles map[transport.Handle]interface{}
}

// DefaultTransport is the Transport used by transactions that are not
// given one explicitly.
var DefaultTransport = New(Config{})

// New returns a Transport configured by cfg.
func New(cfg Config) *Transport {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		cfg:     cfg,
		log:     log.Named("nettransport"),
		handles: make(map[transport.Handle]interface{}),
	}
}

type session struct {
	ua  string
	ctx uint64
	cb  transport.StatusFunc
}

func (s *session) status(st transport.Status, info transport.StatusInfo) {
	if s.cb != nil {
		s.cb(s.ctx, st, info)
	}
}

type connection struct {
	s    *session
	host string
	port int
}

func (t *Transport) add(v interface{}) transport.Handle {
	h := transport.Handle(t.next.Add(1))
	t.mu.Lock()
	t.handles[h] = v
	t.mu.Unlock()
	return h
}

func (t *Transport) lookup(h transport.Handle) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.handles[h]
	return v, ok
}

func (t *Transport) remove(h transport.Handle) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.handles[h]
	delete(t.handles, h)
	return v, ok
}

func (t *Transport) exchange(h transport.Handle) (*exchange, error) {
	v, ok := t.lookup(h)
	if !ok {
		return nil, transport.ErrInvalidOperation
	}
	x, ok := v.(*exchange)
	if !ok {
		return nil, transport.ErrIncorrectHandleType
	}
	return x, nil
}

// OpenSession records the user agent and status sink. It never fails.
func (t *Transport) OpenSession(userAgent string, ctx uint64, cb transport.StatusFunc) (transport.Handle, error) {
	return t.add(&session{ua: userAgent, ctx: ctx, cb: cb}), nil
}

// OpenConnection records the server address. No connection is made
// until a request on it is sent.
func (t *Transport) OpenConnection(sh transport.Handle, host string, port int) (transport.Handle, error) {
	v, ok := t.lookup(sh)
	if !ok {
		return transport.NoHandle, transport.ErrInvalidOperation
	}
	s, ok := v.(*session)
	if !ok {
		return transport.NoHandle, transport.ErrIncorrectHandleType
	}
	if host == "" || port <= 0 || port > 65535 {
		return transport.NoHandle, transport.ErrInvalidURL
	}
	return t.add(&connection{s: s, host: host, port: port}), nil
}

// OpenRequest creates a request handle on conn.
func (t *Transport) OpenRequest(conn transport.Handle, method, path string, secure bool) (transport.Handle, error) {
	v, ok := t.lookup(conn)
	if !ok {
		return transport.NoHandle, transport.ErrInvalidOperation
	}
	c, ok := v.(*connection)
	if !ok {
		return transport.NoHandle, transport.ErrIncorrectHandleType
	}
	if path == "" {
		path = "/"
	}
	ctx, cancel := context.WithCancel(context.Background())
	x := &exchange{
		t:      t,
		s:      c.s,
		host:   c.host,
		port:   c.port,
		method: method,
		path:   path,
		secure: secure,
		ctx:    ctx,
		cancel: cancel,
	}
	x.h = t.add(x)
	return x.h, nil
}

// SendRequest connects and sends a request without a body. It
// completes once the response head has been received.
func (t *Transport) SendRequest(req transport.Handle, headers string) error {
	x, err := t.exchange(req)
	if err != nil {
		return err
	}
	x.headers = headers
	return x.start(func() error {
		if err := x.connect(); err != nil {
			return err
		}
		if err := x.writeHead(-1); err != nil {
			return err
		}
		return x.readResponse(true)
	})
}

// SendRequestWithBody connects and sends the head of a request whose
// body follows.
func (t *Transport) SendRequestWithBody(req transport.Handle, headers string, total int64) error {
	x, err := t.exchange(req)
	if err != nil {
		return err
	}
	if total < 0 {
		return transport.ErrInvalidOperation
	}
	x.headers = headers
	return x.start(func() error {
		if err := x.connect(); err != nil {
			return err
		}
		return x.writeHead(total)
	})
}

// WriteChunk sends p. It always completes asynchronously.
func (t *Transport) WriteChunk(req transport.Handle, p []byte) (int, error) {
	x, err := t.exchange(req)
	if err != nil {
		return 0, err
	}
	return 0, x.start(func() error {
		return x.write(p)
	})
}

// EndRequest finishes the request body and completes once the
// response head has been received.
func (t *Transport) EndRequest(req transport.Handle) error {
	x, err := t.exchange(req)
	if err != nil {
		return err
	}
	return x.start(func() error {
		return x.readResponse(false)
	})
}

// QueryVersion returns the protocol of the response status line.
func (t *Transport) QueryVersion(req transport.Handle) (string, error) {
	x, err := t.exchange(req)
	if err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.head == "" {
		return "", transport.ErrIncorrectHandleState
	}
	return x.proto, nil
}

// QueryStatus returns the response status code.
func (t *Transport) QueryStatus(req transport.Handle) (int, error) {
	x, err := t.exchange(req)
	if err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.head == "" {
		return 0, transport.ErrIncorrectHandleState
	}
	return x.status, nil
}

// QueryHeaders returns the raw response head.
func (t *Transport) QueryHeaders(req transport.Handle) (string, error) {
	x, err := t.exchange(req)
	if err != nil {
		return "", err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.head == "" {
		return "", transport.ErrIncorrectHandleState
	}
	return x.head, nil
}

// ReadChunk copies buffered response body bytes into p. When nothing
// is buffered it starts a read of up to len(p) bytes and returns
// transport.ErrPending.
func (t *Transport) ReadChunk(req transport.Handle, p []byte) (int, error) {
	x, err := t.exchange(req)
	if err != nil {
		return 0, err
	}
	return x.read(p)
}

// Close releases h. Closing a request handle aborts its network work
// and closes its connection.
func (t *Transport) Close(h transport.Handle) error {
	v, ok := t.remove(h)
	if !ok {
		return transport.ErrInvalidOperation
	}
	switch v := v.(type) {
	case *exchange:
		v.close()
		v.s.status(transport.StatusHandleClosing, transport.StatusInfo{Handle: h})
	case *connection:
		v.s.status(transport.StatusHandleClosing, transport.StatusInfo{Handle: h})
	case *session:
		v.status(transport.StatusHandleClosing, transport.StatusInfo{Handle: h})
	}
	return nil
}
