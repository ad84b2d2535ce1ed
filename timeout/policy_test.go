// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"errors"
	"math"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/txhttp/request"
	"github.com/gogama/txhttp/transport"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	a := DefaultPolicy.Timeout(&request.Execution{}, transport.OpOpenConnection)
	assert.Equal(t, 30*time.Second, a)
	b := DefaultPolicy.Timeout(&request.Execution{AttemptTimeouts: 3, Err: syscall.ETIMEDOUT, Body: []byte("foo")}, transport.OpRead)
	assert.Equal(t, 30*time.Second, b)
	c := DefaultPolicy.Timeout(nil, transport.OpSendRequest)
	assert.Equal(t, 30*time.Second, c)
}

func TestInfinite(t *testing.T) {
	a := Infinite.Timeout(&request.Execution{}, transport.OpRead)
	assert.Equal(t, time.Duration(math.MaxInt64), a)
	b := Infinite.Timeout(&request.Execution{AttemptTimeouts: 10, Err: syscall.ETIMEDOUT}, transport.OpRead)
	assert.Equal(t, Never, b)
}

func TestFixed(t *testing.T) {
	p := Fixed(33 * time.Hour)
	for _, op := range transport.Ops() {
		assert.Equal(t, 33*time.Hour, p.Timeout(nil, op))
	}
	b := p.Timeout(&request.Execution{AttemptTimeouts: 1, Err: syscall.ETIMEDOUT, Attempt: 1}, transport.OpRead)
	assert.Equal(t, 33*time.Hour, b)
	c := p.Timeout(&request.Execution{AttemptTimeouts: 2, Err: syscall.ETIMEDOUT, Attempt: 2}, transport.OpRead)
	assert.Equal(t, 33*time.Hour, c)
}

func TestAdaptive(t *testing.T) {
	p := Adaptive(5*time.Millisecond, 10*time.Millisecond, 100*time.Millisecond)
	op := transport.OpQuery
	testCases := []struct {
		name     string
		e        *request.Execution
		expected time.Duration
	}{
		{"outside a client", nil, 5 * time.Millisecond},
		{"first attempt", &request.Execution{}, 5 * time.Millisecond},
		{"first attempt timed out, no retry yet", &request.Execution{AttemptTimeouts: 1, Err: syscall.ETIMEDOUT}, 5 * time.Millisecond},
		{"retry after first timeout", &request.Execution{Attempt: 1, AttemptTimeouts: 1, RetryAfterTimeout: true}, 10 * time.Millisecond},
		{"retry after other failure", &request.Execution{Attempt: 2, AttemptTimeouts: 1, Err: errors.New("routine")}, 5 * time.Millisecond},
		{"retry after second timeout", &request.Execution{Attempt: 2, AttemptTimeouts: 2, RetryAfterTimeout: true}, 100 * time.Millisecond},
		{"more timeouts than values", &request.Execution{Attempt: 5, AttemptTimeouts: 5, RetryAfterTimeout: true}, 100 * time.Millisecond},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, p.Timeout(testCase.e, op))
		})
	}
}

func TestPerOp(t *testing.T) {
	overrides := map[transport.Op]time.Duration{
		transport.OpOpenConnection: time.Second,
		transport.OpRead:           0,
	}
	p := PerOp(time.Minute, overrides)
	overrides[transport.OpWrite] = time.Hour

	assert.Equal(t, time.Second, p.Timeout(nil, transport.OpOpenConnection))
	assert.Equal(t, time.Duration(0), p.Timeout(nil, transport.OpRead))
	assert.Equal(t, time.Minute, p.Timeout(nil, transport.OpWrite))
	assert.Equal(t, time.Minute, p.Timeout(&request.Execution{}, transport.OpSendRequest))
}
