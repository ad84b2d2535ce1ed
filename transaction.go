// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"net/url"
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/runloop"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport"
	"github.com/gogama/txhttp/transport/nettransport"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgent is the user agent a transaction identifies
	// itself with unless WithUserAgent is given.
	DefaultUserAgent = "txhttp/1.0"
	// DefaultTimeout is the deadline of every pending operation under
	// timeout.DefaultPolicy.
	DefaultTimeout = 30 * time.Second
	// ChunkSize is the largest request body chunk written, and the
	// largest response body chunk read, in one transport call.
	ChunkSize = request.DefaultChunkSize
)

type options struct {
	transport transport.Transport
	userAgent string
	policy    timeout.Policy
	logger    *zap.Logger
	exec      *request.Execution
}

// An Option configures a Transaction.
type Option func(*options)

// WithTransport sets the transport a transaction runs on. The default
// is nettransport.DefaultTransport.
func WithTransport(tr transport.Transport) Option {
	return func(o *options) {
		o.transport = tr
	}
}

// WithUserAgent sets the user agent passed to Transport.OpenSession.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithTimeoutPolicy sets the policy that chooses the deadline of each
// pending operation. The default is timeout.DefaultPolicy.
func WithTimeoutPolicy(p timeout.Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func withExecution(e *request.Execution) Option {
	return func(o *options) {
		o.exec = e
	}
}

// A Transaction is one HTTP request and its response, driven on a
// runloop.Loop.
//
// Initiate, and the accessors other than ID, Request, and UserAgent,
// must be called on the loop goroutine, or after the loop has stopped.
// Cancel and Close may be called from any goroutine.
type Transaction struct {
	e *engine
}

// NewTransaction returns a transaction that will send req when
// initiated. The transaction is registered, and has its ID, as soon as
// NewTransaction returns. It must eventually be closed.
func NewTransaction(loop *runloop.Loop, req *request.Request, opts ...Option) *Transaction {
	if loop == nil {
		panic("txhttp: nil loop")
	}
	if req == nil {
		panic("txhttp: nil request")
	}
	o := options{
		userAgent: DefaultUserAgent,
		policy:    timeout.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transport == nil {
		o.transport = nettransport.DefaultTransport
	}
	if o.policy == nil {
		o.policy = timeout.DefaultPolicy
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Transaction{e: newEngine(loop, req, &o)}
}

// ID returns the transaction's registry id.
func (t *Transaction) ID() uint64 {
	return t.e.id
}

// Request returns the request the transaction sends.
func (t *Transaction) Request() *request.Request {
	return t.e.req
}

// UserAgent returns the user agent the transaction identifies itself
// with.
func (t *Transaction) UserAgent() string {
	return t.e.ua
}

// State returns the current state.
func (t *Transaction) State() State {
	return t.e.state
}

// RedirectURL returns the location of the last redirect the transport
// followed, or nil.
func (t *Transaction) RedirectURL() *url.URL {
	if t.e.redirect == nil {
		return nil
	}
	u := *t.e.redirect
	return &u
}

// Response returns the response version, status, and headers, or nil
// if they have not been received.
func (t *Transaction) Response() *request.Response {
	return t.e.resp
}

// Err returns the reason the transaction stopped without completing,
// as an *OpError, or nil.
func (t *Transaction) Err() error {
	if t.e.state == Done {
		return nil
	}
	return t.e.err
}

// Initiate starts the transaction. It runs until the first operation
// that cannot complete immediately, so l may be called before Initiate
// returns. Calling Initiate again does nothing.
func (t *Transaction) Initiate(l ListenerRef) {
	e := t.e
	if !e.loop.OnLoop() {
		panic("txhttp: Initiate called off the loop goroutine")
	}
	if e.initiated {
		return
	}
	e.initiated = true
	e.listener = l
	e.log.Debug("initiate", zap.Stringer("request", e.req))
	e.advance(nil)
}

// Cancel stops the transaction. On the loop goroutine it takes effect,
// and OnCancel is called, before Cancel returns. On any other goroutine
// it takes effect once the loop gets to it. Cancelling a transaction
// that has already reached an outcome does nothing.
func (t *Transaction) Cancel() {
	e := t.e
	if !e.cancelled.CompareAndSwap(false, true) {
		return
	}
	if e.loop.OnLoop() {
		e.cancelNow()
		return
	}
	e.dispatch("cancel", (*engine).cancelNow)
}

func (e *engine) cancelNow() {
	if !e.initiated || e.finished {
		return
	}
	e.advance(nil)
}

// Close releases the transaction. Notifications still on their way to
// it are dropped, and its listener is never called again. Close may be
// called from inside a listener method, and more than once.
func (t *Transaction) Close() {
	e := t.e
	if !e.detached.CompareAndSwap(false, true) {
		return
	}
	engines.Unregister(e.id)
	if !e.loop.Post(e.teardown) {
		e.teardown()
	}
}

func (e *engine) teardown() {
	e.listener = nil
	e.closeConnection()
	e.log.Debug("transaction closed")
}
