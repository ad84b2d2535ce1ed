// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"io"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gogama/txhttp/progress"
	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/runloop"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport"
	"go.uber.org/zap"
)

// engine drives one transaction. Apart from the two atomic flags, every
// field is owned by the loop goroutine and is only touched there.
type engine struct {
	id     uint64
	loop   *runloop.Loop
	tr     transport.Transport
	req    *request.Request
	ua     string
	policy timeout.Policy
	exec   *request.Execution
	log    *zap.Logger

	cancelled atomic.Bool
	detached  atomic.Bool

	listener  ListenerRef
	initiated bool
	state     State
	running   bool
	closed    bool
	finished  bool
	err       error
	pendingOp transport.Op

	session transport.Handle
	conn    transport.Handle
	hreq    transport.Handle

	source request.BodySource
	chunk  []byte
	queued int
	send   *progress.Tracker
	recv   *progress.Tracker
	buf    []byte
	nread  int

	resp     *request.Response
	redirect *url.URL

	timer    *time.Timer
	timerGen uint64
}

func newEngine(loop *runloop.Loop, req *request.Request, o *options) *engine {
	e := &engine{
		loop:   loop,
		tr:     o.transport,
		req:    req,
		ua:     o.userAgent,
		policy: o.policy,
		exec:   o.exec,
		buf:    make([]byte, ChunkSize),
	}
	e.send = progress.New(progress.Send, func(r progress.Report) {
		e.notify(func(l Listener) { l.OnSendProgress(r.Bytes, r.Total, r.Percent) })
	})
	e.recv = progress.New(progress.Receive, func(r progress.Report) {
		e.notify(func(l Listener) { l.OnReceiveProgress(r.Bytes, r.Total, r.Percent) })
	})
	e.id = engines.Register(e)
	e.log = o.logger.With(zap.Uint64("id", e.id))
	return e
}

// notify calls f with the listener, unless the transaction has been
// closed or the listener is gone.
func (e *engine) notify(f func(Listener)) {
	if e.detached.Load() || e.listener == nil {
		return
	}
	if l := e.listener.Listener(); l != nil {
		f(l)
	}
}

// advance runs the state machine until an operation is pending or the
// transaction has reached an outcome. The code is the result of the
// operation that was last pending, or nil.
func (e *engine) advance(code error) {
	if e.closed {
		e.log.Warn("connection closed, ignoring wakeup", zap.Stringer("state", e.state))
		return
	}
	if e.running {
		// A listener re-entered the engine, typically through Cancel.
		// The running loop observes the flags on its next check.
		e.log.Debug("wakeup while running", zap.Stringer("state", e.state))
		return
	}
	e.running = true
	defer func() { e.running = false }()

	pending := transport.IsPending(code)
	if code != nil && !pending {
		e.fail(&OpError{Op: e.pendingOp, Err: code})
		return
	}

	for !pending && e.err == nil && !e.cancelled.Load() && !e.state.Terminal() {
		pending = e.step()
	}
	e.finish()
}

// step performs the work of the current state and reports whether it
// left an operation pending. The next state is assigned before the
// work is done.
func (e *engine) step() bool {
	s := e.state
	e.state = transition(s, e.facts(s))
	if ce := e.log.Check(zap.DebugLevel, "step"); ce != nil {
		ce.Write(zap.Stringer("state", s), zap.Stringer("next", e.state))
	}

	switch s {
	case Connect:
		return e.connect()
	case OpenRequest:
		return e.openRequest()
	case SendRequest:
		e.notify(Listener.OnConnected)
		return e.call(transport.OpSendRequest, func() error {
			return e.tr.SendRequest(e.hreq, e.headers())
		})
	case SendRequestWithBody:
		e.notify(Listener.OnConnected)
		return e.sendRequestWithBody()
	case PostGetData:
		return e.getData()
	case PostSendData:
		return e.sendData()
	case PostComplete:
		return e.call(transport.OpEndRequest, func() error {
			return e.tr.EndRequest(e.hreq)
		})
	case ResponseGetHeaders:
		return e.getHeaders()
	case ResponseReceiveData:
		return e.receiveData()
	case ResponseWriteData:
		return e.writeData()
	default:
		return false
	}
}

func (e *engine) facts(s State) facts {
	return facts{
		bodyBearing: e.req.BodyBearing(),
		emptyChunk: (s == PostSendData && len(e.chunk) == 0) ||
			(s == ResponseWriteData && e.nread == 0),
	}
}

// call makes a transport call that may be left pending, with the
// deadline for op armed around it. It reports whether the call is
// pending; a failure is recorded in e.err.
func (e *engine) call(op transport.Op, f func() error) bool {
	e.pendingOp = op
	e.arm(e.policy.Timeout(e.exec, op))
	err := f()
	switch {
	case err == nil:
		e.disarm()
		return false
	case transport.IsPending(err):
		return true
	default:
		e.disarm()
		e.err = &OpError{Op: op, Err: err}
		return false
	}
}

func (e *engine) connect() bool {
	e.notify(Listener.OnConnecting)
	e.pendingOp = transport.OpOpenSession
	h, err := e.tr.OpenSession(e.ua, e.id, statusCallback)
	if err != nil {
		e.err = &OpError{Op: transport.OpOpenSession, Err: err}
		return false
	}
	e.session = h
	return e.call(transport.OpOpenConnection, func() error {
		h, err := e.tr.OpenConnection(e.session, e.req.Host(), e.req.Port())
		if err == nil {
			e.conn = h
		}
		return err
	})
}

func (e *engine) openRequest() bool {
	return e.call(transport.OpOpenRequest, func() error {
		h, err := e.tr.OpenRequest(e.conn, e.req.Method(), e.req.Path(), e.req.Secure())
		if err == nil {
			e.hreq = h
		}
		return err
	})
}

// headers returns the request header block. The engine sends exactly
// one request per connection.
func (e *engine) headers() string {
	h := e.req.Header()
	h.Set("Connection", "close")
	return h.String()
}

func (e *engine) sendRequestWithBody() bool {
	src, err := e.req.Source(ChunkSize)
	if err != nil {
		e.pendingOp = transport.OpReadBody
		e.err = &OpError{Op: transport.OpReadBody, Err: err}
		return false
	}
	e.source = src
	total := src.Size()
	e.send.SetTotal(total)
	return e.call(transport.OpSendRequest, func() error {
		return e.tr.SendRequestWithBody(e.hreq, e.headers(), total)
	})
}

func (e *engine) getData() bool {
	// Bytes of a write that completed asynchronously.
	e.send.Add(e.queued)
	e.queued = 0
	e.send.Report()

	chunk, err := e.source.Next()
	if err != nil {
		e.pendingOp = transport.OpReadBody
		e.err = &OpError{Op: transport.OpReadBody, Err: err}
		return false
	}
	e.chunk = chunk
	return false
}

func (e *engine) sendData() bool {
	if len(e.chunk) == 0 {
		return false
	}
	var n int
	e.queued = len(e.chunk)
	pending := e.call(transport.OpWrite, func() error {
		var err error
		n, err = e.tr.WriteChunk(e.hreq, e.chunk)
		return err
	})
	if pending || e.err != nil {
		return pending
	}
	e.queued = 0
	if n <= 0 {
		e.err = &OpError{Op: transport.OpWrite, Err: io.ErrShortWrite}
		return false
	}
	e.send.Add(n)
	if n < len(e.chunk) {
		// Short write: send the rest of the chunk before pulling more.
		e.chunk = e.chunk[n:]
		e.state = PostSendData
		e.send.Report()
	}
	return false
}

func (e *engine) getHeaders() bool {
	e.disarm()
	e.pendingOp = transport.OpQuery
	resp, err := e.queryResponse()
	if err != nil {
		e.err = &OpError{Op: transport.OpQuery, Err: err}
		return false
	}
	e.resp = resp
	if n, ok := resp.Header.ContentLength(); ok {
		e.recv.SetTotal(n)
	}
	e.log.Debug("response status", zap.Int("status", resp.Status), zap.Stringer("version", resp.Version))
	e.notify(Listener.OnRequestSent)
	e.notify(func(l Listener) { l.OnResponseStatus(resp.Status, resp.Header.Clone()) })
	return false
}

func (e *engine) queryResponse() (*request.Response, error) {
	v, err := e.tr.QueryVersion(e.hreq)
	if err != nil {
		return nil, err
	}
	version, err := request.ParseVersion(v)
	if err != nil {
		return nil, err
	}
	status, err := e.tr.QueryStatus(e.hreq)
	if err != nil {
		return nil, err
	}
	block, err := e.tr.QueryHeaders(e.hreq)
	if err != nil {
		return nil, err
	}
	header, err := request.ParseHeaders(block)
	if err != nil {
		return nil, err
	}
	return &request.Response{Version: version, Status: status, Header: header}, nil
}

func (e *engine) receiveData() bool {
	var n int
	pending := e.call(transport.OpRead, func() error {
		var err error
		n, err = e.tr.ReadChunk(e.hreq, e.buf)
		return err
	})
	if pending {
		e.state = transition(ResponseReceiveData, facts{readPending: true})
		return true
	}
	e.nread = n
	return false
}

func (e *engine) writeData() bool {
	e.send.Finalize()
	e.recv.Add(e.nread)
	e.recv.Report()
	p := e.buf[:e.nread]
	e.notify(func(l Listener) { l.OnResponseBodyBytes(p) })
	if e.nread > 0 {
		return false
	}

	e.recv.Finalize()
	e.finished = true
	e.closeConnection()
	e.log.Debug("transaction complete")
	e.notify(Listener.OnComplete)
	e.dispatch("closed", func(e *engine) {
		e.notify(Listener.OnClosed)
	})
	return false
}

// finish delivers the outcome of a transaction that stopped advancing,
// if it has one and has not delivered it yet.
func (e *engine) finish() {
	if e.finished {
		return
	}
	switch {
	case e.err != nil && e.state != TimedOut:
		e.fail(e.err)
	case e.cancelled.Load():
		e.finished = true
		e.err = &OpError{Op: e.pendingOp, Err: ErrCancelled}
		e.log.Info("transaction cancelled", zap.Stringer("state", e.state))
		e.closeConnection()
		e.notify(Listener.OnCancel)
	case e.state == TimedOut:
		e.finished = true
		e.log.Info("transaction timed out", zap.Stringer("op", e.pendingOp))
		e.closeConnection()
		e.notify(Listener.OnTimeout)
	}
}

func (e *engine) fail(err error) {
	if e.finished {
		return
	}
	e.finished = true
	e.err = err
	e.state = Error
	e.log.Error("transaction failed", zap.Error(err))
	e.closeConnection()
	msg := message(err)
	e.notify(func(l Listener) { l.OnError(msg) })
}

// closeConnection releases every transport handle and the body source.
// It may be called any number of times.
func (e *engine) closeConnection() {
	if e.closed {
		return
	}
	e.closed = true
	e.disarm()
	for _, h := range []transport.Handle{e.hreq, e.conn, e.session} {
		if h == transport.NoHandle {
			continue
		}
		if err := e.tr.Close(h); err != nil {
			e.log.Debug("close handle", zap.Uint64("handle", uint64(h)), zap.Error(err))
		}
	}
	e.hreq, e.conn, e.session = transport.NoHandle, transport.NoHandle, transport.NoHandle
	if e.source != nil {
		_ = e.source.Close()
		e.source = nil
	}
}
