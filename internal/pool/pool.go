// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides typed object pooling for the buffers used to frame
// responses on the wire.
package pool

import (
	"bytes"
	"sync"
)

// Pool is a generics wrapper around [sync.Pool] to provide strongly-typed object pooling.
type Pool[T any] struct {
	p sync.Pool
}

// Resetter is implemented by pooled values that must be cleared before reuse.
type Resetter interface {
	Reset()
}

// New returns a new [Pool] for T, and will use fn to construct new T's when the pool is empty.
func New[T any](fn func() T) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any {
				return fn()
			},
		},
	}
}

// Get gets a T from the pool, or creates a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put resets x when it is a [Resetter] and returns it into the pool.
func (p *Pool[T]) Put(x T) {
	if r, ok := any(x).(Resetter); ok {
		r.Reset()
	}
	p.p.Put(x)
}

// Bytes pools the buffers that SSE frames and WebSocket messages are encoded into.
var Bytes = New(func() *bytes.Buffer {
	return &bytes.Buffer{}
})
