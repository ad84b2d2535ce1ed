// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package runloop provides Loop, a serial execution context owned by a
// single goroutine.
//
// Work posted to a Loop from any goroutine runs on the goroutine that
// called Run, one function at a time, in the order it was posted. Code
// that must never be touched concurrently can therefore be mutated
// without locks, provided every mutation happens on the loop.
package runloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

var (
	// ErrStopped is returned when work is submitted to a stopped Loop.
	ErrStopped = errors.New("runloop: loop stopped")
	// ErrRunning is returned by Run if the loop has already been run.
	ErrRunning = errors.New("runloop: loop already run")
)

// A Loop executes posted functions serially on the goroutine that runs
// it. Create a Loop with New.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	started bool

	wake  chan struct{}
	done  chan struct{}
	owner atomic.Int64
}

// New returns a Loop that is not yet running.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run executes posted functions on the calling goroutine until Stop is
// called and the queue has drained, or until ctx is done. A Loop can
// be run only once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrRunning
	}
	l.started = true
	l.mu.Unlock()

	l.owner.Store(goid.Get())
	defer func() {
		l.owner.Store(0)
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	}()

	for {
		l.mu.Lock()
		var f func()
		if len(l.queue) > 0 {
			f = l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
		}
		stopped := l.stopped
		l.mu.Unlock()

		if f != nil {
			f()
			continue
		}
		if stopped {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Post queues f to run on the loop and reports whether it was accepted.
// It never runs f inline, even when called on the loop goroutine.
func (l *Loop) Post(f func()) bool {
	if f == nil {
		panic("runloop: nil func")
	}

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Invoke runs f on the loop and waits for it to return. If called on
// the loop goroutine, f runs immediately.
func (l *Loop) Invoke(f func()) error {
	if l.OnLoop() {
		f()
		return nil
	}

	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		f()
	}) {
		return ErrStopped
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	}
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == goid.Get()
}

// Stop makes Run return once every function already posted has run.
// Functions posted after Stop are rejected. Stop is idempotent and may
// be called from any goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done returns a channel that is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
