// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gogama/txhttp"
	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport/nettransport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	method       string
	data         string
	dataFile     string
	headers      []string
	timeout      time.Duration
	userAgent    string
	maxRedirects int
	insecure     bool
	include      bool
	progress     bool
	verbose      bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "txget [flags] <url>",
		Short: "Fetch a URL with a single HTTP transaction",
		Long: `txget sends one HTTP request and streams the response body to
standard output as it arrives. Redirects are followed by the transport
for requests without a body.

Example:
  txget https://example.com/
  txget -i -H "Accept: application/json" https://example.com/api
  txget -d '{"a":1}' -H "Content-Type: application/json" https://example.com/api
  txget --data-file upload.bin -X PUT --progress https://example.com/blob`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetch(cmd.Context(), o, args[0], stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&o.method, "request", "X", "", "HTTP method (default GET, or POST with a body)")
	f.StringVarP(&o.data, "data", "d", "", "Request body")
	f.StringVar(&o.dataFile, "data-file", "", "Stream the request body from a file")
	f.StringArrayVarP(&o.headers, "header", "H", nil, `Extra header field, "Name: value" (repeatable)`)
	f.DurationVar(&o.timeout, "timeout", txhttp.DefaultTimeout, "Deadline of each network operation (0 disables)")
	f.StringVarP(&o.userAgent, "user-agent", "A", txhttp.DefaultUserAgent, "User agent")
	f.IntVar(&o.maxRedirects, "max-redirects", nettransport.DefaultMaxRedirects, "Redirects to follow (negative disables)")
	f.BoolVarP(&o.insecure, "insecure", "k", false, "Skip TLS certificate verification")
	f.BoolVarP(&o.include, "include", "i", false, "Print the status line and headers before the body")
	f.BoolVar(&o.progress, "progress", false, "Report transfer progress on standard error")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log transaction details on standard error")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")
	return cmd
}

func (o *options) request(rawURL string) (*request.Request, error) {
	var h request.Headers
	for _, s := range o.headers {
		name, value, ok := strings.Cut(s, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("bad header %q, want \"Name: value\"", s)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	var body interface{}
	switch {
	case o.dataFile != "":
		body = request.File(o.dataFile)
	case o.data != "":
		body = o.data
	}

	method := strings.ToUpper(o.method)
	if method == "" && body != nil {
		method = "POST"
	}

	return request.New(method, rawURL, h, body)
}

func (o *options) policy() timeout.Policy {
	if o.timeout <= 0 {
		return timeout.Infinite
	}
	return timeout.Fixed(o.timeout)
}

func (o *options) transport(log *zap.Logger) *nettransport.Transport {
	cfg := nettransport.Config{
		MaxRedirects: o.maxRedirects,
		Logger:       log,
	}
	if o.maxRedirects == 0 {
		cfg.MaxRedirects = -1
	}
	if o.insecure {
		cfg.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return nettransport.New(cfg)
}

func (o *options) logger(stderr io.Writer) *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(stderr), zap.DebugLevel)
	return zap.New(core)
}
