// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// ErrMalformedHeader is wrapped by errors returned from ParseHeaders.
var ErrMalformedHeader = errors.New("txhttp/request: malformed header")

// A Field is one header field.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header multimap. Lookups are case-insensitive;
// the original field order and name spelling are preserved.
type Headers []Field

// Get returns the value of the first field named name, or the empty
// string if there is none.
func (h Headers) Get(name string) string {
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return h[i].Value
		}
	}
	return ""
}

// Values returns the values of every field named name, in order.
func (h Headers) Values(name string) []string {
	var v []string
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			v = append(v, h[i].Value)
		}
	}
	return v
}

// Has reports whether at least one field is named name.
func (h Headers) Has(name string) bool {
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return true
		}
	}
	return false
}

// Add appends a field.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Field{Name: name, Value: value})
}

// Set replaces every field named name with a single field.
func (h *Headers) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Del removes every field named name.
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns a copy of h that shares no storage with it.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	c := make(Headers, len(h))
	copy(c, h)
	return c
}

// String formats h as a header block, one "Name: value" line per field,
// each terminated by CRLF.
func (h Headers) String() string {
	var b strings.Builder
	for _, f := range h {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString("\r\n")
	}
	return b.String()
}

// ContentLength returns the value of the Content-Length field. The
// second return value is false if the field is absent or invalid.
func (h Headers) ContentLength() (int64, bool) {
	v := strings.TrimSpace(h.Get("Content-Length"))
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h Headers) validate() error {
	for _, f := range h {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("txhttp/request: invalid header field name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("txhttp/request: invalid header field value for %q", f.Name)
		}
	}
	return nil
}

// ParseHeaders parses a raw response header block. A leading status
// line, if present, is skipped. Parsing stops at the first empty line.
// Obsolete line folding is unfolded into a single space.
func ParseHeaders(block string) (Headers, error) {
	if strings.TrimSpace(block) == "" {
		return nil, fmt.Errorf("%w: empty block", ErrMalformedHeader)
	}

	lines := strings.Split(block, "\n")
	if strings.HasPrefix(lines[0], "HTTP/") {
		lines = lines[1:]
	}

	h := Headers{}
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(h) == 0 {
				return nil, fmt.Errorf("%w: continuation before first field", ErrMalformedHeader)
			}
			last := &h[len(h)-1]
			last.Value = strings.TrimSpace(last.Value + " " + strings.TrimSpace(line))
			continue
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		name := line[:i]
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("%w: bad field name %q", ErrMalformedHeader, name)
		}
		h.Add(name, strings.TrimSpace(line[i+1:]))
	}
	return h, nil
}
