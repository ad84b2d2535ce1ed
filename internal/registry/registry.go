// Copyright 2021 The txhttp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package registry maps opaque integer ids to live instances.
//
// Ids, not addresses, are what crosses goroutine boundaries: a
// notification carrying an id resolves to its instance only while that
// instance is registered, so a late notification for a destroyed
// instance finds nothing and does nothing.
package registry

import "sync"

// FirstID is the first id handed out by a Registry.
const FirstID = 1000

// A Registry is a thread-safe map from ids to instances. Ids are even,
// strictly increasing, and never reused for the lifetime of the
// Registry. The zero value is ready to use.
type Registry[T any] struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]T
}

// Register adds v and returns its id.
func (r *Registry[T]) Register(v T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live == nil {
		r.live = make(map[uint64]T)
		r.next = FirstID
	}

	id := r.next
	r.next += 2
	if _, dup := r.live[id]; dup {
		panic("registry: id reused")
	}
	r.live[id] = v
	return id
}

// Unregister removes id. Subsequent lookups of id fail. Unregistering
// an id that is not registered does nothing.
func (r *Registry[T]) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Find returns the instance registered under id, if any.
func (r *Registry[T]) Find(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.live[id]
	return v, ok
}

// Len returns the number of registered instances.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Valid reports whether id has the shape of an id handed out by a
// Registry. Odd values, and zero, are never valid.
func Valid(id uint64) bool {
	return id >= FirstID && id&1 == 0
}
