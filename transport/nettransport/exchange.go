// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package nettransport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/transport"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// An exchange is one request handle. Fields above mu are only touched
// by the goroutine doing the handle's current operation, which the
// caller guarantees is never more than one.
type exchange struct {
	t      *Transport
	s      *session
	h      transport.Handle
	ctx    context.Context
	cancel context.CancelFunc

	host      string
	port      int
	method    string
	path      string
	secure    bool
	headers   string
	redirects int
	wc        net.Conn
	br        *bufio.Reader
	bw        *bufio.Writer

	mu     sync.Mutex
	nc     net.Conn
	busy   bool
	closed bool
	proto  string
	status int
	head   string
	body   io.Reader
	rbuf   []byte
	eof    bool
	rerr   error
}

// start runs f on a new goroutine and returns transport.ErrPending.
// When f returns, its result is delivered as StatusRequestComplete.
func (x *exchange) start(f func() error) error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return transport.ErrOperationCancelled
	}
	if x.busy {
		x.mu.Unlock()
		return transport.ErrIncorrectHandleState
	}
	x.busy = true
	x.mu.Unlock()

	go func() {
		err := f()
		x.mu.Lock()
		x.busy = false
		x.mu.Unlock()
		x.complete(err)
	}()
	return transport.ErrPending
}

func (x *exchange) complete(err error) {
	info := transport.StatusInfo{Handle: x.h}
	if err != nil {
		x.mu.Lock()
		closed := x.closed
		x.mu.Unlock()
		if closed {
			info.Err = transport.ErrOperationCancelled
		} else {
			info.Err = mapErr(err)
		}
		x.t.log.Debug("operation failed", zap.Uint64("handle", uint64(x.h)), zap.Error(err), zap.NamedError("code", info.Err))
	}
	x.s.status(transport.StatusRequestComplete, info)
}

func (x *exchange) deadline() {
	if x.t.cfg.IOTimeout <= 0 || x.wc == nil {
		return
	}
	_ = x.wc.SetDeadline(time.Now().Add(x.t.cfg.IOTimeout))
}

// connect dials the current host and, for secure requests, completes
// the TLS handshake.
func (x *exchange) connect() error {
	host, err := idna.Lookup.ToASCII(x.host)
	if err != nil {
		return transport.ErrInvalidURL
	}
	addr := net.JoinHostPort(host, strconv.Itoa(x.port))
	x.s.status(transport.StatusConnectingToServer, transport.StatusInfo{Handle: x.h, URL: addr})
	x.t.log.Debug("dial", zap.String("addr", addr), zap.Bool("secure", x.secure))

	d := net.Dialer{Timeout: x.t.cfg.DialTimeout}
	nc, err := d.DialContext(x.ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if x.secure {
		var cfg *tls.Config
		if x.t.cfg.TLSConfig != nil {
			cfg = x.t.cfg.TLSConfig.Clone()
		} else {
			cfg = &tls.Config{}
		}
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		tc := tls.Client(nc, cfg)
		if err := tc.HandshakeContext(x.ctx); err != nil {
			_ = nc.Close()
			return err
		}
		nc = tc
	}

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		_ = nc.Close()
		return context.Canceled
	}
	x.nc = nc
	x.mu.Unlock()

	x.wc = nc
	x.br = bufio.NewReader(nc)
	x.bw = bufio.NewWriter(nc)
	x.s.status(transport.StatusConnectedToServer, transport.StatusInfo{Handle: x.h, URL: addr})
	return nil
}

// disconnect closes the current connection ahead of following a
// redirect.
func (x *exchange) disconnect() {
	x.mu.Lock()
	nc := x.nc
	x.nc = nil
	x.mu.Unlock()
	if nc != nil {
		_ = nc.Close()
	}
}

func (x *exchange) hostHeader() string {
	h := x.host
	if strings.Contains(h, ":") {
		h = "[" + h + "]"
	}
	if (x.secure && x.port == 443) || (!x.secure && x.port == 80) {
		return h
	}
	return h + ":" + strconv.Itoa(x.port)
}

// writeHead writes the request line and headers. A negative total
// means the request has no body.
func (x *exchange) writeHead(total int64) error {
	x.s.status(transport.StatusSendingRequest, transport.StatusInfo{Handle: x.h})
	lines := headerLines(x.headers)
	fmt.Fprintf(x.bw, "%s %s HTTP/1.1\r\n", x.method, x.path)
	if !hasField(lines, "Host") {
		fmt.Fprintf(x.bw, "Host: %s\r\n", x.hostHeader())
	}
	if x.s.ua != "" && !hasField(lines, "User-Agent") {
		fmt.Fprintf(x.bw, "User-Agent: %s\r\n", x.s.ua)
	}
	if total >= 0 && !hasField(lines, "Content-Length") {
		fmt.Fprintf(x.bw, "Content-Length: %d\r\n", total)
	}
	for _, line := range lines {
		x.bw.WriteString(line)
		x.bw.WriteString("\r\n")
	}
	x.bw.WriteString("\r\n")
	x.deadline()
	if err := x.bw.Flush(); err != nil {
		return err
	}
	x.s.status(transport.StatusRequestSent, transport.StatusInfo{Handle: x.h})
	return nil
}

func (x *exchange) write(p []byte) error {
	x.deadline()
	if _, err := x.bw.Write(p); err != nil {
		return err
	}
	return x.bw.Flush()
}

// readResponse reads response heads until a final one. If follow is
// true, redirects are followed by reissuing the request on a new
// connection.
func (x *exchange) readResponse(follow bool) error {
	x.s.status(transport.StatusReceivingResponse, transport.StatusInfo{Handle: x.h})
	for {
		proto, status, head, err := x.readHead()
		if err != nil {
			return err
		}
		if status >= 100 && status < 200 && status != 101 {
			continue
		}
		header, err := request.ParseHeaders(head)
		if err != nil {
			return transport.ErrInvalidServerResponse
		}
		if follow {
			if u := x.redirectTarget(status, header); u != nil {
				if err := x.follow(status, u); err != nil {
					return err
				}
				continue
			}
		}

		x.mu.Lock()
		x.proto, x.status, x.head = proto, status, head
		x.body = x.bodyReader(status, header)
		x.mu.Unlock()
		x.s.status(transport.StatusResponseReceived, transport.StatusInfo{Handle: x.h, Bytes: len(head)})
		return nil
	}
}

func (x *exchange) readHead() (proto string, status int, head string, err error) {
	tp := textproto.NewReader(x.br)
	x.deadline()
	line, err := tp.ReadLine()
	if err == io.EOF {
		return "", 0, "", transport.ErrInvalidServerResponse
	} else if err != nil {
		return "", 0, "", err
	}
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return "", 0, "", transport.ErrInvalidServerResponse
	}
	code, _, _ := strings.Cut(rest, " ")
	if len(code) != 3 {
		return "", 0, "", transport.ErrInvalidServerResponse
	}
	if status, err = strconv.Atoi(code); err != nil || status < 100 {
		return "", 0, "", transport.ErrInvalidServerResponse
	}

	var b strings.Builder
	b.WriteString(line)
	b.WriteString("\r\n")
	for {
		l, err := tp.ReadLine()
		if err != nil {
			return "", 0, "", err
		}
		if l == "" {
			break
		}
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return proto, status, b.String(), nil
}

func (x *exchange) currentURL() *url.URL {
	u, err := url.ParseRequestURI(x.path)
	if err != nil {
		u = &url.URL{Path: x.path}
	}
	u.Scheme = "http"
	if x.secure {
		u.Scheme = "https"
	}
	u.Host = x.hostHeader()
	return u
}

// redirectTarget returns where a response redirects to, or nil if it
// should not be followed.
func (x *exchange) redirectTarget(status int, header request.Headers) *url.URL {
	switch status {
	case 301, 302, 303, 307, 308:
	default:
		return nil
	}
	if x.t.cfg.MaxRedirects < 0 || x.redirects >= x.t.cfg.MaxRedirects {
		return nil
	}
	loc := header.Get("Location")
	if loc == "" {
		return nil
	}
	base := x.currentURL()
	u, err := base.Parse(loc)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	switch {
	case u.Scheme == "https":
	case u.Scheme == "http" && base.Scheme == "http":
	default:
		// Never downgrade to plain text.
		return nil
	}
	return u
}

func (x *exchange) follow(status int, u *url.URL) error {
	x.redirects++
	x.t.log.Debug("redirect", zap.Int("status", status), zap.Stringer("url", u))
	x.s.status(transport.StatusRedirect, transport.StatusInfo{Handle: x.h, URL: u.String()})
	x.disconnect()

	x.secure = u.Scheme == "https"
	x.host = u.Hostname()
	x.port = 80
	if x.secure {
		x.port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return transport.ErrInvalidURL
		}
		x.port = n
	}
	x.path = u.RequestURI()
	if status == 303 && x.method != "HEAD" {
		x.method = "GET"
	}
	x.headers = withoutField(x.headers, "Host")

	if err := x.connect(); err != nil {
		return err
	}
	return x.writeHead(-1)
}

func (x *exchange) bodyReader(status int, header request.Headers) io.Reader {
	if x.method == "HEAD" || status == 204 || status == 304 || status < 200 {
		return strings.NewReader("")
	}
	te := strings.ToLower(strings.TrimSpace(header.Get("Transfer-Encoding")))
	if strings.HasSuffix(te, "chunked") {
		return httputil.NewChunkedReader(x.br)
	}
	if n, ok := header.ContentLength(); ok {
		return io.LimitReader(x.br, n)
	}
	return x.br
}

func (x *exchange) read(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch {
	case len(x.rbuf) > 0:
		n := copy(p, x.rbuf)
		x.rbuf = x.rbuf[n:]
		return n, nil
	case x.rerr != nil:
		return 0, x.rerr
	case x.eof:
		return 0, nil
	case x.closed:
		return 0, transport.ErrOperationCancelled
	case x.body == nil || x.busy:
		return 0, transport.ErrIncorrectHandleState
	}
	x.busy = true
	go x.fill(len(p))
	return 0, transport.ErrPending
}

// fill reads the next piece of the response body into rbuf.
func (x *exchange) fill(size int) {
	if size <= 0 {
		size = request.DefaultChunkSize
	}
	b := make([]byte, size)
	var n int
	var err error
	for n == 0 && err == nil {
		x.deadline()
		n, err = x.body.Read(b)
	}

	x.mu.Lock()
	x.busy = false
	x.rbuf = b[:n]
	if err == io.EOF {
		x.eof = true
		err = nil
	} else if err != nil && n > 0 {
		// Deliver the bytes now and the failure on the next read.
		x.rerr = mapErr(err)
		err = nil
	}
	x.mu.Unlock()

	if n > 0 {
		x.s.status(transport.StatusResponseReceived, transport.StatusInfo{Handle: x.h, Bytes: n})
	}
	x.complete(err)
}

func (x *exchange) close() {
	x.mu.Lock()
	x.closed = true
	nc := x.nc
	x.nc = nil
	x.mu.Unlock()

	x.cancel()
	if nc != nil {
		x.s.status(transport.StatusClosingConnection, transport.StatusInfo{Handle: x.h})
		_ = nc.Close()
		x.s.status(transport.StatusConnectionClosed, transport.StatusInfo{Handle: x.h})
	}
}

func headerLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func fieldName(line string) string {
	name, _, _ := strings.Cut(line, ":")
	return strings.TrimSpace(name)
}

func hasField(lines []string, name string) bool {
	for _, line := range lines {
		if strings.EqualFold(fieldName(line), name) {
			return true
		}
	}
	return false
}

func withoutField(block, name string) string {
	var b strings.Builder
	for _, line := range headerLines(block) {
		if !strings.EqualFold(fieldName(line), name) {
			b.WriteString(line)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
