// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"net/url"
	"weak"

	"github.com/gogama/txhttp/request"
)

// A Listener observes one transaction. Every method is called on the
// goroutine running the transaction's loop.
//
// Exactly one of OnComplete, OnCancel, OnTimeout, and OnError is called
// per transaction. OnClosed follows OnComplete, delivered later through
// the loop, so a listener may close the transaction from OnComplete.
//
// Embed NopListener to implement only the methods of interest.
type Listener interface {
	OnConnecting()
	OnConnected()
	OnRequestSent()
	OnResponseStatus(status int, header request.Headers)
	OnSendProgress(bytes, total int64, percent float64)
	OnReceiveProgress(bytes, total int64, percent float64)
	// OnResponseBodyBytes receives the next piece of the response body.
	// The slice is only valid for the duration of the call.
	OnResponseBodyBytes(p []byte)
	OnComplete()
	OnRedirect(u *url.URL)
	OnCancel()
	OnTimeout()
	OnError(msg string)
	OnClosed()
}

// A ListenerRef resolves to a Listener, or to nil once the Listener is
// gone. A transaction resolves its ListenerRef before every call and
// skips the call on nil.
type ListenerRef interface {
	Listener() Listener
}

// Strong returns a ListenerRef that always resolves to l.
func Strong(l Listener) ListenerRef {
	return strongRef{l}
}

type strongRef struct {
	l Listener
}

func (r strongRef) Listener() Listener {
	return r.l
}

// Weak returns a ListenerRef that resolves to p only while p is
// otherwise reachable. The transaction does not keep p alive.
func Weak[T any, P interface {
	*T
	Listener
}](p P) ListenerRef {
	if p == nil {
		panic("txhttp: nil listener")
	}
	return weakRef[T, P]{weak.Make((*T)(p))}
}

type weakRef[T any, P interface {
	*T
	Listener
}] struct {
	w weak.Pointer[T]
}

func (r weakRef[T, P]) Listener() Listener {
	p := r.w.Value()
	if p == nil {
		return nil
	}
	return P(p)
}

// NopListener implements Listener with methods that do nothing.
type NopListener struct{}

func (NopListener) OnConnecting()                               {}
func (NopListener) OnConnected()                                {}
func (NopListener) OnRequestSent()                              {}
func (NopListener) OnResponseStatus(int, request.Headers)       {}
func (NopListener) OnSendProgress(int64, int64, float64)        {}
func (NopListener) OnReceiveProgress(int64, int64, float64)     {}
func (NopListener) OnResponseBodyBytes([]byte)                  {}
func (NopListener) OnComplete()                                 {}
func (NopListener) OnRedirect(*url.URL)                         {}
func (NopListener) OnCancel()                                   {}
func (NopListener) OnTimeout()                                  {}
func (NopListener) OnError(string)                              {}
func (NopListener) OnClosed()                                   {}
