// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package runloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T) *Loop {
	l := New()
	go func() {
		_ = l.Run(context.Background())
	}()
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_Order(t *testing.T) {
	l := start(t)
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Invoke(func() {}))
	require.Len(t, got, 100)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestLoop_OnLoop(t *testing.T) {
	l := start(t)
	assert.False(t, l.OnLoop())
	var on bool
	require.NoError(t, l.Invoke(func() { on = l.OnLoop() }))
	assert.True(t, on)

	t.Run("other goroutine", func(t *testing.T) {
		ch := make(chan bool)
		go func() { ch <- l.OnLoop() }()
		assert.False(t, <-ch)
	})
}

func TestLoop_Invoke(t *testing.T) {
	l := start(t)
	t.Run("nested runs inline", func(t *testing.T) {
		var trace []string
		require.NoError(t, l.Invoke(func() {
			trace = append(trace, "outer")
			_ = l.Invoke(func() { trace = append(trace, "inner") })
			trace = append(trace, "after")
		}))
		assert.Equal(t, []string{"outer", "inner", "after"}, trace)
	})
	t.Run("post from loop is deferred", func(t *testing.T) {
		var trace []string
		require.NoError(t, l.Invoke(func() {
			l.Post(func() { trace = append(trace, "posted") })
			trace = append(trace, "inline")
		}))
		require.NoError(t, l.Invoke(func() {}))
		assert.Equal(t, []string{"inline", "posted"}, trace)
	})
}

func TestLoop_Stop(t *testing.T) {
	l := New()
	var mu sync.Mutex
	n := 0
	for i := 0; i < 3; i++ {
		l.Post(func() {
			mu.Lock()
			n++
			mu.Unlock()
		})
	}
	l.Stop()
	assert.False(t, l.Post(func() {}))
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, l.Invoke(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Run(context.Background()), ErrRunning)

	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestLoop_Context(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Run(ctx), context.DeadlineExceeded)
	assert.False(t, l.Post(func() {}))
}

func TestLoop_OwnerIsRunGoroutine(t *testing.T) {
	l := New()
	ch := make(chan bool, 1)
	go func() { ch <- l.OnLoop() }()
	assert.False(t, <-ch)
	require.True(t, l.Post(func() {
		assert.True(t, l.OnLoop())
		go func() { ch <- l.OnLoop() }()
		assert.False(t, <-ch)
		l.Stop()
	}))
	require.NoError(t, l.Run(context.Background()))
}
