// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package racing

import (
	"strconv"
	"time"

	"github.com/gogama/txhttp/request"
)

// A Policy decides when to add another racer to an attempt.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Scheduler
	Starter
}

// A Scheduler schedules the next racer of an attempt.
type Scheduler interface {
	// Schedule returns how long to wait, after the racer just started,
	// before the next racer should be considered. A non-positive
	// duration means no further racer is scheduled.
	//
	// The execution's Racing field holds the number of racers started
	// so far in the current attempt.
	Schedule(e *request.Execution) time.Duration
}

// A Starter starts or discards a previously scheduled racer.
type Starter interface {
	// Start reports whether a scheduled racer should join the attempt.
	// If it returns false, the racer is discarded and no more racers
	// are scheduled for the attempt.
	Start(e *request.Execution) bool
}

// Disabled is a policy that never adds a racer, so each attempt runs a
// single transaction.
var Disabled Policy = disabled{}

type disabled struct{}

func (disabled) Schedule(*request.Execution) time.Duration { return 0 }

func (disabled) Start(*request.Execution) bool { return false }

// NewPolicy composes a Scheduler and a Starter into a Policy.
func NewPolicy(s Scheduler, st Starter) Policy {
	if s == nil {
		panic("txhttp/racing: nil scheduler")
	}
	if st == nil {
		panic("txhttp/racing: nil starter")
	}
	return policy{s, st}
}

type policy struct {
	Scheduler
	Starter
}

// NewStaticScheduler returns a scheduler that adds one racer per
// offset. Each offset is measured from the start of the previous racer,
// so the scheduler below starts a second racer 200ms into the attempt
// and a third 300ms after that:
//
//	racing.NewStaticScheduler(200*time.Millisecond, 300*time.Millisecond)
func NewStaticScheduler(offsets ...time.Duration) Scheduler {
	for i, d := range offsets {
		if d <= 0 {
			panic("txhttp/racing: offset " + strconv.Itoa(i) + " not positive")
		}
	}
	return staticScheduler(append([]time.Duration(nil), offsets...))
}

type staticScheduler []time.Duration

func (s staticScheduler) Schedule(e *request.Execution) time.Duration {
	i := e.Racing - 1
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

// AlwaysStart is a starter that starts every scheduled racer.
var AlwaysStart Starter = alwaysStarter{}

type alwaysStarter struct{}

func (alwaysStarter) Start(*request.Execution) bool { return true }
