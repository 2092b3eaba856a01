// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package pool provides strongly typed object pools for the encode paths of
// the HTTP transport.
package pool

import (
	"bytes"
	"sync"
)

// maxBufferSize is the largest buffer kept for reuse. Larger buffers are
// dropped so that one oversized payload does not pin memory.
const maxBufferSize = 1 << 20

// Pool is a generic wrapper around [sync.Pool].
type Pool[T any] struct {
	p    sync.Pool
	keep func(T) bool
}

// Resetter is implemented by pooled values cleared on Put.
type Resetter interface {
	Reset()
}

// New returns a new [Pool] for T, and will use fn to construct new T's when the pool is empty.
// When keep is not nil, Put discards the values it rejects.
func New[T any](fn func() T, keep func(T) bool) *Pool[T] {
	return &Pool[T]{
		p: sync.Pool{
			New: func() any {
				return fn()
			},
		},
		keep: keep,
	}
}

// Get gets a T from the pool, or creates a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	return p.p.Get().(T)
}

// Put returns x into the pool, resetting it first.
func (p *Pool[T]) Put(x T) {
	if p.keep != nil && !p.keep(x) {
		return
	}
	if r, ok := any(x).(Resetter); ok {
		r.Reset()
	}
	p.p.Put(x)
}

// Bytes pools [*bytes.Buffer] values.
var Bytes = New(
	func() *bytes.Buffer { return new(bytes.Buffer) },
	func(b *bytes.Buffer) bool { return b.Cap() <= maxBufferSize },
)
