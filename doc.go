// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package txhttp runs single HTTP transactions asynchronously on an event
loop, and builds a synchronous client with retry support on top of them.

A Transaction is one request and its response. It is created against a
runloop.Loop, initiated on the loop goroutine with a Listener, and
thereafter advances through its states whenever the transport reports
progress. Every listener method is called on the loop goroutine.

	loop := runloop.New()
	req, _ := request.New("GET", "https://www.example.com", nil, nil)
	tx := txhttp.NewTransaction(loop, req)
	defer tx.Close()
	loop.Post(func() {
		tx.Initiate(txhttp.Strong(myListener))
	})
	_ = loop.Run(ctx)

Exactly one of OnComplete, OnCancel, OnTimeout, and OnError ends a
transaction. Cancel and Close may be called from any goroutine, and
Close may be called from inside a listener method. A transaction that
is closed before the transport's last notification arrives is simply
forgotten: the notification finds no registered transaction and is
dropped.

Listeners may be held strongly or weakly. A weak reference lets the
listener be garbage collected while the transaction is still running,
in which case notifications are silently discarded:

	tx.Initiate(txhttp.Weak(view))

For the common case of fetching a whole response, use a Client:

	client := &txhttp.Client{}
	ex, err := client.Get(ctx, "https://www.example.com")
	...
	ex, err := client.Post(ctx, "https://www.example.com/upload",
		"application/json", &buf)
	...
	ex, err := client.PostForm(ctx, "http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

For control over the client's retry decisions and timing, create a
custom retry policy using components from package retry:

	retryWaiter := retry.NewExpWaiter(250*time.Millisecond, 5*time.Second, time.Now())
	retryPolicy := retry.NewPolicy(retry.DefaultDecider, retryWaiter)
	client := txhttp.Client{
		RetryPolicy: retryPolicy,
	}

For control over operation deadlines, set a custom timeout policy using
package timeout:

	client := &txhttp.Client{
		TimeoutPolicy: timeout.Fixed(10*time.Second),
	}

To hook into the fine-grained details of the client's execution logic,
install a handler into the appropriate handler chain:

	handlers := &txhttp.HandlerGroup{}
	handlers.PushBack(txhttp.BeforeAttempt, txhttp.HandlerFunc(
		func(_ txhttp.Event, e *request.Execution) {
			logger.Info("attempt", zap.Int("n", e.Attempt))
		}),
	)
	client := &txhttp.Client{
		Handlers: handlers,
	}

Package txhttp provides basic interfaces for each method of the client
(Doer, Getter, Header, Poster, and FormPoster); a combined interface that
composes all the basic methods (Executor); and utility functions for
working with a Doer (Inflate, Get, Head, Post, and PostForm).
*/
package txhttp
