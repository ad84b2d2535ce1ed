// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package txhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/retry"
	"github.com/gogama/txhttp/timeout"
	"github.com/gogama/txhttp/transport"
	"github.com/gogama/txhttp/transport/nettransport"
)

var httpServer = httptest.NewUnstartedServer(http.HandlerFunc(serverHandler))
var httpsServer = httptest.NewUnstartedServer(http.HandlerFunc(serverHandler))
var servers = []*httptest.Server{httpServer, httpsServer}

func TestMain(m *testing.M) {
	httpServer.Start()
	httpsServer.StartTLS()
	waitForServerStart(httpServer)
	waitForServerStart(httpsServer)
	code := m.Run()
	httpServer.Close()
	httpsServer.Close()
	os.Exit(code)
}

func waitForServerStart(server *httptest.Server) {
	cl := &Client{
		Transport:     serverTransport(server),
		RetryPolicy:   retry.NewPolicy(retry.Before(10*time.Second).And(retry.TransientErr), retry.DefaultWaiter),
		TimeoutPolicy: timeout.Fixed(2 * time.Second),
	}
	r := (&serverInstruction{StatusCode: 200}).toRequest("POST", server)
	e, err := cl.Do(context.Background(), r)
	if e.StatusCode() != 200 {
		panic(fmt.Sprintf("Test server startup failed with status %d and error %v",
			e.StatusCode(), err))
	}
}

// serverTransport returns a transport that trusts server's certificate.
func serverTransport(server *httptest.Server) transport.Transport {
	if server.TLS == nil {
		return nettransport.New(nettransport.Config{})
	}
	return nettransport.New(nettransport.Config{
		TLSConfig: server.Client().Transport.(*http.Transport).TLSClientConfig,
	})
}

func serverName(server *httptest.Server) string {
	switch server {
	case httpServer:
		return "http"
	case httpsServer:
		return "https"
	default:
		panic("unknown server")
	}
}

type bodyChunk struct {
	Pause time.Duration
	Data  []byte
}

// A serverInstruction travels in the request body and tells
// serverHandler how to respond.
type serverInstruction struct {
	HeaderPause time.Duration
	StatusCode  int
	Header      map[string]string
	Body        []bodyChunk
}

func (i *serverInstruction) toJSON() []byte {
	b, err := json.Marshal(i)
	if err != nil {
		panic(err)
	}

	return b
}

func (i *serverInstruction) toRequest(method string, server *httptest.Server) *request.Request {
	r, err := request.New(method, server.URL, nil, i.toJSON())
	if err != nil {
		panic(err)
	}

	return r
}

func (i *serverInstruction) fromRequest(req *http.Request) error {
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()

	if err != nil {
		return err
	}

	return json.Unmarshal(b, i)
}

func serverHandler(w http.ResponseWriter, req *http.Request) {
	// Decode the instructions.
	var i serverInstruction
	err := i.fromRequest(req)
	if err != nil {
		w.WriteHeader(400)
		_, _ = io.WriteString(w, fmt.Sprintf("failed to read request: %s", err.Error()))
		return
	}

	// Validate the instruction.
	if i.StatusCode == 0 {
		w.WriteHeader(400)
		_, _ = io.WriteString(w, fmt.Sprintf("bad StatusCode in instruction: %v", i))
		return
	}

	f, ok := w.(http.Flusher)
	if !ok {
		panic("w does not implement Flusher")
	}

	contentLength := 0
	for _, chunk := range i.Body {
		contentLength += len(chunk.Data)
	}

	header := w.Header()
	header.Add("Content-Length", strconv.Itoa(contentLength))
	for k, v := range i.Header {
		header.Set(k, v)
	}

	// Give the client a chance to time out waiting for the headers.
	time.Sleep(i.HeaderPause)

	w.WriteHeader(i.StatusCode)
	f.Flush()

	// Write the response one byte at a time, spreading each chunk's
	// pause evenly across its bytes.
	for _, chunk := range i.Body {
		data := chunk.Data
		pause := chunk.Pause
		ppb := chunk.Pause / time.Duration(len(chunk.Data))

		for i := range data {
			_, err = w.Write(data[i : i+1])
			if err != nil {
				return
			}
			f.Flush()
			time.Sleep(ppb)
			pause -= ppb
		}

		if pause > 0 {
			time.Sleep(pause)
		}
	}
}
