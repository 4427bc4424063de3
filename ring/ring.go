// Package ring provides a fixed-capacity circular buffer for byte and word
// streams moved between an interrupt handler and the main loop.
//
// A [RingBuffer] of capacity N allocates N+1 slots; the extra slot
// distinguishes full from empty without a separate count. Values enter at the
// front cursor and leave at the back cursor, so [RingBuffer.PushFront] paired
// with [RingBuffer.PopBack] is first-in first-out. [RingBuffer.PushBack] and
// [RingBuffer.PopFront] operate on the opposite ends.
//
// Cursors are stored in atomic words. One producer and one consumer may run
// in different contexts (an ISR filling, the main loop draining) without a
// lock. Any other sharing pattern needs external synchronization.
package ring

import "sync/atomic"

// RingBuffer is a bounded double-ended queue of T.
type RingBuffer[T any] struct {
	buf   []T
	front atomic.Uint32 // next slot written by PushFront
	back  atomic.Uint32 // next slot read by PopBack
}

// New returns an empty buffer holding at most capacity values.
// New panics if capacity is zero or does not fit the cursor width.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 || capacity >= 1<<31 {
		panic("ring: invalid capacity")
	}
	return &RingBuffer[T]{buf: make([]T, capacity+1)}
}

func (r *RingBuffer[T]) size() uint32 {
	return uint32(len(r.buf))
}

func (r *RingBuffer[T]) next(i uint32) uint32 {
	if i++; i == r.size() {
		return 0
	}
	return i
}

func (r *RingBuffer[T]) prev(i uint32) uint32 {
	if i == 0 {
		return r.size() - 1
	}
	return i - 1
}

// Cap returns the number of values the buffer can hold.
func (r *RingBuffer[T]) Cap() int {
	return len(r.buf) - 1
}

// Level returns the number of values currently held.
func (r *RingBuffer[T]) Level() int {
	f, b := r.front.Load(), r.back.Load()
	// Unsigned subtraction wraps when front is behind back; adding the slot
	// count brings it back into range.
	return int((f - b + r.size()) % r.size())
}

// Empty reports whether the buffer holds no values.
func (r *RingBuffer[T]) Empty() bool {
	return r.front.Load() == r.back.Load()
}

// Full reports whether the buffer cannot accept another value.
func (r *RingBuffer[T]) Full() bool {
	return r.next(r.front.Load()) == r.back.Load()
}

// PushFront appends v at the front. It returns false if the buffer is full.
func (r *RingBuffer[T]) PushFront(v T) bool {
	f := r.front.Load()
	n := r.next(f)
	if n == r.back.Load() {
		return false
	}
	r.buf[f] = v
	r.front.Store(n)
	return true
}

// PushBack inserts v at the back, ahead of every value already queued.
// It returns false if the buffer is full.
func (r *RingBuffer[T]) PushBack(v T) bool {
	if r.Full() {
		return false
	}
	b := r.prev(r.back.Load())
	r.buf[b] = v
	r.back.Store(b)
	return true
}

// PopBack removes and returns the oldest value. It returns false if the
// buffer is empty.
func (r *RingBuffer[T]) PopBack() (v T, ok bool) {
	b := r.back.Load()
	if b == r.front.Load() {
		return v, false
	}
	v = r.buf[b]
	var zero T
	r.buf[b] = zero
	r.back.Store(r.next(b))
	return v, true
}

// PopFront removes and returns the newest value. It returns false if the
// buffer is empty.
func (r *RingBuffer[T]) PopFront() (v T, ok bool) {
	f := r.front.Load()
	if f == r.back.Load() {
		return v, false
	}
	f = r.prev(f)
	v = r.buf[f]
	var zero T
	r.buf[f] = zero
	r.front.Store(f)
	return v, true
}

// PeekBack returns the oldest value without removing it.
func (r *RingBuffer[T]) PeekBack() (v T, ok bool) {
	b := r.back.Load()
	if b == r.front.Load() {
		return v, false
	}
	return r.buf[b], true
}

// Clear discards every value.
func (r *RingBuffer[T]) Clear() {
	r.back.Store(r.front.Load())
}
