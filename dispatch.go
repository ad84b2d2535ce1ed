// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"time"

	"github.com/gogama/txhttp/internal/registry"
	"github.com/gogama/txhttp/runloop"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport"
	"go.uber.org/zap"
)

// engines holds every transaction that has not been closed. It is the
// only way code running outside a transaction's loop may reach it.
var engines registry.Registry[*engine]

// post queues f to run on loop against the engine registered under id.
// If the engine has been closed by the time f would run, f is dropped.
func post(loop *runloop.Loop, log *zap.Logger, id uint64, what string, f func(*engine)) {
	ok := loop.Post(func() {
		e, ok := engines.Find(id)
		if !ok {
			log.Warn("transaction closed, dropping "+what, zap.Uint64("id", id))
			return
		}
		f(e)
	})
	if !ok {
		log.Warn("loop stopped, dropping "+what, zap.Uint64("id", id))
	}
}

func (e *engine) dispatch(what string, f func(*engine)) {
	post(e.loop, e.log, e.id, what, f)
}

// statusCallback is the StatusFunc every session is opened with. The
// ctx parameter is the id of the transaction that opened the session.
// It runs on transport goroutines and touches nothing but the registry
// before handing off to the transaction's loop.
func statusCallback(ctx uint64, st transport.Status, info transport.StatusInfo) {
	e, ok := engines.Find(ctx)
	if !ok {
		zap.L().Debug("status for unknown transaction", zap.Uint64("id", ctx), zap.Stringer("status", st))
		return
	}

	switch st {
	case transport.StatusHandleCreated:
		h := info.Handle
		e.dispatch("handle", func(e *engine) { e.handleCreated(h) })
	case transport.StatusRedirect:
		loc := info.URL
		e.dispatch("redirect", func(e *engine) { e.redirected(loc) })
	case transport.StatusRequestComplete:
		code := info.Err
		e.dispatch("completion", func(e *engine) {
			e.disarm()
			if e.cancelled.Load() {
				// A cancel requested before this completion ran wins
				// over its outcome.
				code = nil
			}
			e.advance(code)
		})
	default:
		// Fields of e other than these immutable ones belong to the loop.
		e.log.Debug("transport status", zap.Stringer("status", st), zap.Int("bytes", info.Bytes))
	}
}

func (e *engine) handleCreated(h transport.Handle) {
	if e.closed {
		_ = e.tr.Close(h)
		return
	}
	switch e.state {
	case OpenRequest:
		e.conn = h
	case SendRequest, SendRequestWithBody:
		e.hreq = h
	default:
		e.log.Warn("handle created in unexpected state", zap.Stringer("state", e.state), zap.Uint64("handle", uint64(h)))
	}
}

func (e *engine) redirected(loc string) {
	if e.closed {
		e.log.Debug("redirect after close", zap.String("location", loc))
		return
	}
	base := e.redirect
	if base == nil {
		base = e.req.URL()
	}
	u, err := base.Parse(loc)
	if err != nil {
		e.log.Warn("bad redirect location", zap.String("location", loc), zap.Error(err))
		return
	}
	e.redirect = u
	e.log.Info("redirected", zap.Stringer("url", u))
	e.notify(func(l Listener) {
		c := *u
		l.OnRedirect(&c)
	})
}

// arm starts the deadline for the operation about to be issued,
// replacing any deadline already armed.
func (e *engine) arm(d time.Duration) {
	e.disarm()
	if d >= timeout.Never {
		return
	}
	e.timerGen++
	gen, loop, log, id := e.timerGen, e.loop, e.log, e.id
	e.timer = time.AfterFunc(d, func() {
		post(loop, log, id, "deadline", func(e *engine) { e.expire(gen) })
	})
}

func (e *engine) disarm() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// expire handles a deadline firing. A deadline that was disarmed or
// replaced after it fired is ignored.
func (e *engine) expire(gen uint64) {
	if e.timer == nil || gen != e.timerGen || e.closed {
		return
	}
	e.timer = nil
	e.state = TimedOut
	e.err = &OpError{Op: e.pendingOp, Err: ErrTimedOut}
	e.advance(nil)
}
