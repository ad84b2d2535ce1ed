// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package progress derives monotonic percentage reports from byte
// counters.
//
// A Tracker follows one direction of a transfer. Its reports never
// decrease, always begin with exactly one 0% report, and end with
// exactly one 100% report once the Tracker is finalized.
package progress

import "fmt"

// Direction says whether a Tracker follows the request body going out
// or the response body coming in.
type Direction int

const (
	// Send is the request body direction.
	Send Direction = iota
	// Receive is the response body direction.
	Receive
)

func (d Direction) String() string {
	switch d {
	case Send:
		return "send"
	case Receive:
		return "receive"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// A Report is one emitted progress value. Total is zero when the
// transfer size is not known.
type Report struct {
	Direction Direction
	Bytes     int64
	Total     int64
	Percent   float64
}

// Percent returns processed as a percentage of total, clamped to
// [0, 100]. It returns 0 when total is zero.
func Percent(processed, total int64) float64 {
	if total == 0 {
		return 0
	}
	p := float64(processed) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// A Tracker accumulates the bytes processed in one direction and emits
// Reports through its emit function.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	dir       Direction
	emit      func(Report)
	processed int64
	total     int64
	last      float64
	zeroSent  bool
	fullSent  bool
}

// New returns a Tracker that passes every report to emit. A nil emit
// discards reports.
func New(dir Direction, emit func(Report)) *Tracker {
	return &Tracker{dir: dir, emit: emit}
}

// Direction returns the direction the Tracker follows.
func (t *Tracker) Direction() Direction {
	return t.dir
}

// SetTotal records the expected number of bytes. Zero means unknown.
func (t *Tracker) SetTotal(n int64) {
	if n < 0 {
		n = 0
	}
	t.total = n
}

// Total returns the expected number of bytes, or zero if unknown.
func (t *Tracker) Total() int64 {
	return t.total
}

// Add counts n more bytes as processed. It does not emit anything.
func (t *Tracker) Add(n int) {
	if n > 0 {
		t.processed += int64(n)
	}
}

// Processed returns the number of bytes processed so far.
func (t *Tracker) Processed() int64 {
	return t.processed
}

// Done reports whether the 100% report has been emitted.
func (t *Tracker) Done() bool {
	return t.fullSent
}

// Report emits the 0% report if it has not been emitted yet, followed
// by a report of the current percentage if it exceeds the last one
// emitted. Once 100% has been emitted, Report does nothing.
func (t *Tracker) Report() {
	if t.fullSent {
		return
	}
	if !t.zeroSent {
		t.send(0, t.total, 0)
	}
	if p := Percent(t.processed, t.total); p > t.last {
		t.send(t.processed, t.total, p)
	}
}

// Finalize makes sure both the 0% and the 100% reports have been
// emitted. When the total is unknown, the bytes actually processed
// stand in for it.
func (t *Tracker) Finalize() {
	total := t.total
	if total == 0 {
		total = t.processed
	}
	if !t.zeroSent {
		t.send(0, total, 0)
	}
	if !t.fullSent {
		t.send(total, total, 100)
	}
}

func (t *Tracker) send(n, total int64, pct float64) {
	if t.emit != nil {
		t.emit(Report{Direction: t.dir, Bytes: n, Total: total, Percent: pct})
	}
	t.last = pct
	switch pct {
	case 0:
		t.zeroSent = true
	case 100:
		t.fullSent = true
	}
}
