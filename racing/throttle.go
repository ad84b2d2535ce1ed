// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package racing

import (
	"sync"
	"time"

	"github.com/gogama/txhttp/request"
)

// A Limit caps the number of racers started per unit time.
type Limit struct {
	MaxRacers int
	Period    time.Duration
}

// NewThrottleStarter returns a starter that declines a racer if starting
// it would exceed any of limits. The starter below blocks new racers
// once 10 have started in the last half second, or 15 in the last
// second:
//
//	racing.NewThrottleStarter(
//		racing.Limit{MaxRacers: 10, Period: 500 * time.Millisecond},
//		racing.Limit{MaxRacers: 15, Period: time.Second})
//
// Only added racers count against the limits. The first racer of every
// attempt always runs.
func NewThrottleStarter(limits ...Limit) Starter {
	st := &throttleStarter{now: time.Now}
	for _, l := range limits {
		if l.MaxRacers < 0 || l.Period <= 0 {
			panic("txhttp/racing: invalid limit")
		}
		st.windows = append(st.windows, window{Limit: l})
	}
	return st
}

type throttleStarter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows []window
}

func (st *throttleStarter) Start(_ *request.Execution) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	for i := range st.windows {
		if !st.windows[i].admits(now) {
			return false
		}
	}
	for i := range st.windows {
		st.windows[i].starts = append(st.windows[i].starts, now)
	}
	return true
}

// A window holds the start times, oldest first, that still fall within
// its limit's period.
type window struct {
	Limit
	starts []time.Time
}

func (w *window) admits(now time.Time) bool {
	cutoff := now.Add(-w.Period)
	i := 0
	for i < len(w.starts) && !w.starts[i].After(cutoff) {
		i++
	}
	w.starts = append(w.starts[:0], w.starts[i:]...)
	return len(w.starts) < w.MaxRacers
}
