// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gogama/txhttp/racing"
	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/retry"
	"github.com/gogama/txhttp/runloop"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport"
	"go.uber.org/zap"
)

var emptyHandlers = HandlerGroup{}

// A Client executes requests synchronously, with retry support, by
// running one Transaction per attempt. Its zero value is a valid
// configuration.
//
// The zero value client uses nettransport.DefaultTransport as the
// transport, timeout.DefaultPolicy as the timeout policy,
// retry.DefaultPolicy as the retry policy, racing.Disabled as the
// racing policy, and an empty handler group (no event handlers/plug-ins).
//
// Each attempt runs on a private runloop.Loop owned by the goroutine
// calling Do, so Client is safe for concurrent use by multiple
// goroutines.
//
// On top of a single transaction, Client adds the following features:
//
// • Client buffers the entire response body into a []byte (returned
// as the Execution.Body field);
//
// • Client retries failed attempts using a customizable retry policy;
//
// • Client chooses operation deadlines using a customizable timeout
// policy, which sees the execution so far;
//
// • Client can race several transactions within one attempt, following
// a customizable racing policy; and
//
// • Client invokes user-provided handler functions at designated
// plug-in points within the attempt/retry loop.
type Client struct {
	// Transport performs the network work of each attempt.
	//
	// If Transport is nil, nettransport.DefaultTransport is used.
	Transport transport.Transport
	// RetryPolicy decides when to retry failed attempts and how long
	// to sleep after a failed attempt before retrying.
	//
	// If RetryPolicy is nil, retry.DefaultPolicy is used.
	RetryPolicy retry.Policy
	// TimeoutPolicy chooses the deadline of each pending transport
	// operation.
	//
	// If TimeoutPolicy is nil, timeout.DefaultPolicy is used.
	TimeoutPolicy timeout.Policy
	// RacingPolicy decides when to add racers to an attempt. All racers
	// of an attempt share its loop; the first to complete wins and the
	// others are cancelled.
	//
	// If RacingPolicy is nil, racing.Disabled is used.
	RacingPolicy racing.Policy
	// Handlers allows custom handler chains to be invoked when
	// designated events occur during an execution.
	//
	// If Handlers is nil, no custom handlers will be run.
	Handlers *HandlerGroup
	// Logger receives the logs of the client and of every transaction
	// it runs.
	//
	// If Logger is nil, nothing is logged.
	Logger *zap.Logger
	// UserAgent identifies the client to the transport.
	//
	// If UserAgent is empty, DefaultUserAgent is used.
	UserAgent string
}

// Do executes a request and returns the results, following the timeout
// and retry policy set on Client.
//
// The result returned is the result after the final attempt made
// during the execution, as determined by the retry policy.
//
// An error is returned if, after doing any retries mandated by the
// retry policy, the final attempt resulted in an error. An attempt may
// end in error due to a transport failure, a missed deadline, a
// malformed response, or because ctx was cancelled. A non-2XX status
// code in the final attempt does not result in an error.
//
// The returned Execution is never nil. If the returned error is nil,
// the Execution contains both a non-nil Response and a non-nil Body
// (although Body may have zero length). Otherwise Body is nil, and
// the Err field of the Execution references the returned error.
//
// Any returned error will be of type *url.Error. The url.Error's
// Timeout method, and the Execution's Timeout method, will return true
// if the final attempt timed out, or if ctx's deadline was exceeded.
func (c *Client) Do(ctx context.Context, r *request.Request) (*request.Execution, error) {
	if r == nil {
		panic("txhttp: nil request")
	}

	e := request.Execution{
		Request: r,
	}

	retryPolicy := c.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = retry.DefaultPolicy
	}

	handlers := c.Handlers
	if handlers == nil {
		handlers = &emptyHandlers
	}

	log := c.logger()

	handlers.run(BeforeExecutionStart, &e)
	e.Start = time.Now()

RetryLoop:
	for {
		c.attempt(ctx, &e, handlers, log)
		if e.Timeout() {
			e.AttemptTimeouts++
			handlers.run(AfterAttemptTimeout, &e)
		}
		handlers.run(AfterAttempt, &e)
		ctxErr := ctx.Err()
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			e.Err = urlErrorWrap(e.Request, ctxErr)
			e.Body = nil
			handlers.run(AfterExecutionTimeout, &e)
			break
		} else if ctxErr != nil {
			e.Err = urlErrorWrap(e.Request, ctxErr)
			e.Body = nil
			break
		} else if retryPolicy.Decide(&e) {
			wait := retryPolicy.Wait(&e)
			log.Debug("retrying",
				zap.Int("attempt", e.Attempt),
				zap.Duration("wait", wait),
				zap.Error(e.Err))
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				break
			case <-ctx.Done():
				timer.Stop()
				err := ctx.Err()
				e.Err = urlErrorWrap(e.Request, err)
				e.Body = nil
				if errors.Is(err, context.DeadlineExceeded) {
					handlers.run(AfterExecutionTimeout, &e)
				}
				break RetryLoop
			}
			e.RetryAfterTimeout = e.Timeout()
			e.Response = nil
			e.Redirects = nil
			e.Err = nil
			e.Body = nil
			e.Attempt++
		} else {
			break
		}
	}

	e.End = time.Now()
	handlers.run(AfterExecutionEnd, &e)
	return &e, e.Err
}

// attempt runs one attempt to its outcome on a private loop driven by
// the calling goroutine.
func (c *Client) attempt(ctx context.Context, e *request.Execution, handlers *HandlerGroup, log *zap.Logger) {
	handlers.run(BeforeAttempt, e)

	w := &race{
		c:        c,
		loop:     runloop.New(),
		e:        e,
		handlers: handlers,
		log:      log,
		policy:   c.racingPolicy(),
	}
	w.loop.Post(w.add)
	stop := context.AfterFunc(ctx, func() {
		w.loop.Post(w.cancel)
	})
	defer stop()

	_ = w.loop.Run(context.Background())
	w.release()

	if err := w.winner.tx.Err(); err != nil {
		e.Err = urlErrorWrap(e.Request, err)
		e.Body = nil
	}
}

// A race holds the transactions of one attempt. Apart from release, its
// methods run on the attempt's loop.
type race struct {
	c        *Client
	loop     *runloop.Loop
	e        *request.Execution
	handlers *HandlerGroup
	log      *zap.Logger
	policy   racing.Policy
	racers   []*sink
	live     int
	winner   *sink
	timer    *time.Timer
}

// add starts a racer, unless the attempt already has an outcome or the
// policy declines, and schedules the next one.
func (w *race) add() {
	w.timer = nil
	if w.winner != nil {
		return
	}
	if len(w.racers) > 0 {
		if !w.policy.Start(w.e) {
			w.log.Debug("racer declined", zap.Int("attempt", w.e.Attempt), zap.Int("racing", w.e.Racing))
			return
		}
		w.log.Debug("racer added", zap.Int("attempt", w.e.Attempt), zap.Int("racing", w.e.Racing+1))
	}

	tx := NewTransaction(w.loop, w.e.Request,
		WithTransport(w.c.Transport),
		WithUserAgent(w.c.userAgent()),
		WithTimeoutPolicy(w.c.TimeoutPolicy),
		WithLogger(w.log),
		withExecution(w.e))
	s := &sink{w: w, tx: tx}
	w.racers = append(w.racers, s)
	w.live++
	w.e.Racing = len(w.racers)
	tx.Initiate(Strong(s))

	if w.winner != nil {
		return
	}
	if d := w.policy.Schedule(w.e); d > 0 {
		w.timer = time.AfterFunc(d, func() {
			w.loop.Post(w.add)
		})
	}
}

// settle records the outcome of s. The first racer to complete wins;
// a failed racer wins only if no other racer is still running.
func (w *race) settle(s *sink) {
	if w.winner != nil {
		return
	}
	if !s.completed && w.live > 1 {
		w.log.Debug("racer lost", zap.Int("attempt", w.e.Attempt), zap.Error(s.tx.Err()))
		return
	}
	w.winner = s
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.e.Response = s.resp
	w.e.Redirects = s.redirects
	if s.completed {
		w.e.Body = make([]byte, s.body.Len())
		copy(w.e.Body, s.body.Bytes())
	}
	for _, r := range w.racers {
		if r != s {
			r.tx.Cancel()
		}
	}
}

// end retires a racer that will call its listener no more, and stops
// the loop once every racer is gone.
func (w *race) end() {
	w.live--
	if w.live == 0 {
		w.loop.Stop()
	}
}

func (w *race) cancel() {
	for _, r := range w.racers {
		r.tx.Cancel()
	}
}

// release closes every racer's transaction. The loop has stopped, so
// release runs on the goroutine that ran it.
func (w *race) release() {
	if w.timer != nil {
		w.timer.Stop()
	}
	for _, r := range w.racers {
		r.tx.Close()
	}
}

// A sink is the listener of one racer's transaction. It collects the
// racer's response until the race picks a winner.
type sink struct {
	NopListener
	w         *race
	tx        *Transaction
	resp      *request.Response
	redirects []*url.URL
	body      bytes.Buffer
	completed bool
}

func (s *sink) OnResponseStatus(int, request.Headers) {
	s.resp = s.tx.Response()
	if w := s.w; w.winner == nil && w.e.Response == nil {
		w.e.Response = s.resp
		w.handlers.run(AfterResponseStatus, w.e)
	}
}

func (s *sink) OnResponseBodyBytes(p []byte) {
	s.body.Write(p)
}

func (s *sink) OnRedirect(u *url.URL) {
	s.redirects = append(s.redirects, u)
}

func (s *sink) OnComplete() {
	s.completed = true
	s.w.settle(s)
}

func (s *sink) OnClosed() { s.w.end() }

func (s *sink) OnCancel() {
	s.w.settle(s)
	s.w.end()
}

func (s *sink) OnTimeout() {
	s.w.settle(s)
	s.w.end()
}

func (s *sink) OnError(string) {
	s.w.settle(s)
	s.w.end()
}

// Get issues a GET to the specified URL, using the same policies
// followed by Do.
//
// To make a request with custom headers, use request.New and
// Client.Do.
func (c *Client) Get(ctx context.Context, url string) (*request.Execution, error) {
	return Get(ctx, c, url)
}

// Head issues a HEAD to the specified URL, using the same policies
// followed by Do.
//
// To make a request with custom headers, use request.New and
// Client.Do.
func (c *Client) Head(ctx context.Context, url string) (*request.Execution, error) {
	return Head(ctx, c, url)
}

// Post issues a POST to the specified URL, using the same policies
// followed by Do.
//
// The body parameter may be nil for an empty body, a request.File, or
// any of the types supported by request.BodyBytes, namely: string;
// []byte; io.Reader; and io.ReadCloser.
//
// To make a request with custom headers, use request.New and
// Client.Do.
func (c *Client) Post(ctx context.Context, url, contentType string, body interface{}) (*request.Execution, error) {
	return Post(ctx, c, url, contentType, body)
}

// PostForm issues a POST to the specified URL, with data's keys and
// values URL-encoded as the request body.
//
// The Content-Type header is set to application/x-www-form-urlencoded.
// To set other headers, use request.New and Client.Do.
func (c *Client) PostForm(ctx context.Context, url string, data url.Values) (*request.Execution, error) {
	return PostForm(ctx, c, url, data)
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}

	return c.Logger
}

func (c *Client) racingPolicy() racing.Policy {
	if c.RacingPolicy == nil {
		return racing.Disabled
	}

	return c.RacingPolicy
}

func (c *Client) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}

	return c.UserAgent
}

func urlErrorWrap(r *request.Request, err error) error {
	if _, ok := err.(*url.Error); ok {
		return err
	}

	return &url.Error{
		Op:  urlErrorOp(r.Method()),
		URL: r.URL().String(),
		Err: err,
	}
}

// urlErrorOp is lifted verbatim from net/http/client.go
func urlErrorOp(method string) string {
	if method == "" {
		return "Get"
	}
	return method[:1] + strings.ToLower(method[1:])
}
