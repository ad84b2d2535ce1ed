// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"go.uber.org/zap"

	"github.com/gogama/txhttp/request"
)

// A HandlerGroup holds one handler chain per Event. Install it in a
// Client to observe or alter executions as they run.
//
// The zero value is an empty group ready to use. A HandlerGroup must
// not be modified while a Client is using it.
type HandlerGroup struct {
	chains [numEvents][]Handler
}

// PushBack appends h to the chain for evt, so it runs after the
// handlers already there.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	c := g.chain(evt, h)
	*c = append(*c, h)
}

// PushFront prepends h to the chain for evt, so it runs before the
// handlers already there.
func (g *HandlerGroup) PushFront(evt Event, h Handler) {
	c := g.chain(evt, h)
	*c = append([]Handler{h}, *c...)
}

// Len returns the number of handlers in the chain for evt.
func (g *HandlerGroup) Len(evt Event) int {
	if evt < 0 || int(evt) >= numEvents {
		return 0
	}
	return len(g.chains[evt])
}

func (g *HandlerGroup) chain(evt Event, h Handler) *[]Handler {
	if h == nil {
		panic("txhttp: nil handler")
	}
	if evt < 0 || int(evt) >= numEvents {
		panic("txhttp: invalid event")
	}
	return &g.chains[evt]
}

func (g *HandlerGroup) run(evt Event, e *request.Execution) {
	for _, h := range g.chains[evt] {
		h.Handle(evt, e)
	}
}

// A Handler handles the occurrence of an event during an execution.
type Handler interface {
	Handle(Event, *request.Execution)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *request.Execution)

// Handle calls f(evt, e).
func (f HandlerFunc) Handle(evt Event, e *request.Execution) {
	f(evt, e)
}

// LogHandler returns a Handler that writes one debug entry per event
// to log. Push it onto every event to trace executions:
//
//	h := txhttp.LogHandler(logger)
//	for _, evt := range txhttp.Events() {
//		g.PushBack(evt, h)
//	}
func LogHandler(log *zap.Logger) Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return HandlerFunc(func(evt Event, e *request.Execution) {
		fields := []zap.Field{
			zap.Stringer("event", evt),
			zap.Int("attempt", e.Attempt),
		}
		if e.Request != nil {
			fields = append(fields, zap.String("url", e.Request.URL().String()))
		}
		if code := e.StatusCode(); code != 0 {
			fields = append(fields, zap.Int("status", code))
		}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		log.Debug("execution event", fields...)
	})
}
