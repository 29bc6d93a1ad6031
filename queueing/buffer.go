// Package queueing provides the bounded queues and shift registers that the
// harness and the behavioral device are built from.
package queueing

import (
	"log"

	"github.com/sarchlab/kvsverify/hooking"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &hooking.HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &hooking.HookPos{Name: "Buffer Pop"}

// A Buffer is a bounded fifo queue.
type Buffer[T any] struct {
	hooking.HookableBase

	name     string
	capacity int
	elements []T
}

// NewBuffer creates a buffer that holds at most capacity elements.
func NewBuffer[T any](name string, capacity int) *Buffer[T] {
	if capacity <= 0 {
		log.Panicf("buffer %s must have a positive capacity", name)
	}

	return &Buffer[T]{
		name:     name,
		capacity: capacity,
		elements: make([]T, 0, capacity),
	}
}

// Name returns the name of the buffer.
func (b *Buffer[T]) Name() string {
	return b.name
}

// CanPush tells if there is room for one more element.
func (b *Buffer[T]) CanPush() bool {
	return len(b.elements) < b.capacity
}

// Push appends an element. Pushing into a full buffer panics.
func (b *Buffer[T]) Push(e T) {
	if len(b.elements) >= b.capacity {
		log.Panicf("buffer %s overflow", b.name)
	}

	b.elements = append(b.elements, e)

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPush,
			Item:   e,
		})
	}
}

// Pop removes and returns the oldest element.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	if len(b.elements) == 0 {
		return zero, false
	}

	e := b.elements[0]
	b.elements[0] = zero
	b.elements = b.elements[1:]

	if b.NumHooks() > 0 {
		b.InvokeHook(hooking.HookCtx{
			Domain: b,
			Pos:    HookPosBufPop,
			Item:   e,
		})
	}

	return e, true
}

// At returns the i-th oldest element.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= len(b.elements) {
		log.Panicf("buffer %s index %d out of range [0, %d)",
			b.name, i, len(b.elements))
	}

	return b.elements[i]
}

// Capacity returns the maximum number of elements.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}

// Size returns the number of elements currently held.
func (b *Buffer[T]) Size() int {
	return len(b.elements)
}
