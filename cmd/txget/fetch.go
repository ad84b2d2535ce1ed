// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/gogama/txhttp"
	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/runloop"
)

// fetch runs one transaction for rawURL on a loop driven by the calling
// goroutine, and returns once the transaction has an outcome.
func fetch(ctx context.Context, o *options, rawURL string, stdout, stderr io.Writer) error {
	log := o.logger(stderr)
	defer func() {
		_ = log.Sync()
	}()

	req, err := o.request(rawURL)
	if err != nil {
		return err
	}

	loop := runloop.New()
	tx := txhttp.NewTransaction(loop, req,
		txhttp.WithTransport(o.transport(log)),
		txhttp.WithUserAgent(o.userAgent),
		txhttp.WithTimeoutPolicy(o.policy()),
		txhttp.WithLogger(log))
	defer tx.Close()

	p := &printer{
		loop:     loop,
		tx:       tx,
		out:      stdout,
		errOut:   stderr,
		include:  o.include,
		progress: o.progress,
	}
	loop.Post(func() {
		tx.Initiate(txhttp.Strong(p))
	})
	stop := context.AfterFunc(ctx, tx.Cancel)
	defer stop()

	if err = loop.Run(context.Background()); err != nil {
		return err
	}
	if p.err != nil {
		return p.err
	}
	return tx.Err()
}

// printer writes what a transaction receives to the terminal.
type printer struct {
	txhttp.NopListener
	loop     *runloop.Loop
	tx       *txhttp.Transaction
	out      io.Writer
	errOut   io.Writer
	include  bool
	progress bool
	err      error
}

func (p *printer) OnResponseStatus(status int, header request.Headers) {
	if !p.include {
		return
	}
	resp := p.tx.Response()
	fmt.Fprintf(p.out, "%s %d %s\r\n%s\r\n", resp.Version, status, resp.StatusText(), header)
}

func (p *printer) OnSendProgress(bytes, total int64, percent float64) {
	p.report("sent", bytes, total, percent)
}

func (p *printer) OnReceiveProgress(bytes, total int64, percent float64) {
	p.report("received", bytes, total, percent)
}

func (p *printer) report(what string, bytes, total int64, percent float64) {
	if !p.progress {
		return
	}
	if total == 0 {
		fmt.Fprintf(p.errOut, "%s %d bytes\n", what, bytes)
		return
	}
	fmt.Fprintf(p.errOut, "%s %d/%d bytes (%.0f%%)\n", what, bytes, total, percent)
}

func (p *printer) OnResponseBodyBytes(b []byte) {
	if p.err != nil {
		return
	}
	if _, err := p.out.Write(b); err != nil {
		p.err = err
		p.tx.Cancel()
	}
}

func (p *printer) OnRedirect(u *url.URL) {
	fmt.Fprintf(p.errOut, "redirected to %s\n", u)
}

func (p *printer) OnClosed()      { p.loop.Stop() }
func (p *printer) OnCancel()      { p.loop.Stop() }
func (p *printer) OnTimeout()     { p.loop.Stop() }
func (p *printer) OnError(string) { p.loop.Stop() }
