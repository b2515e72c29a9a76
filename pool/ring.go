// File: pool/ring.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity ring buffer with a drop-oldest overflow policy.
// Used as the per-client outbound packet queue. Not safe for concurrent
// use: the relay touches every queue from its single event-loop goroutine.

package pool

// RingBuffer is a bounded FIFO. Push never fails: when the ring is full the
// oldest element is evicted to make room for the newest one.
type RingBuffer[T any] struct {
	data  []T
	head  int // index of the oldest element
	count int
}

// NewRingBuffer allocates a ring holding exactly size elements.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{data: make([]T, size)}
}

// Push appends val. It reports whether an older element was evicted.
func (r *RingBuffer[T]) Push(val T) (evicted bool) {
	tail := r.head + r.count
	if tail >= len(r.data) {
		tail -= len(r.data)
	}
	r.data[tail] = val
	if r.count == len(r.data) {
		r.head = r.advance(r.head)
		return true
	}
	r.count++
	return false
}

// Pop removes and returns the oldest element; ok is false when empty.
func (r *RingBuffer[T]) Pop() (res T, ok bool) {
	if r.count == 0 {
		return res, false
	}
	var zero T
	res = r.data[r.head]
	r.data[r.head] = zero
	r.head = r.advance(r.head)
	r.count--
	return res, true
}

// Peek returns the oldest element without removing it.
func (r *RingBuffer[T]) Peek() (res T, ok bool) {
	if r.count == 0 {
		return res, false
	}
	return r.data[r.head], true
}

// Reset drops every element and releases references held by the slots.
func (r *RingBuffer[T]) Reset() {
	clear(r.data)
	r.head, r.count = 0, 0
}

// Len returns number of items in the buffer.
func (r *RingBuffer[T]) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.data) }

// IsEmpty reports whether the buffer is empty.
func (r *RingBuffer[T]) IsEmpty() bool { return r.count == 0 }

// IsFull reports whether the next Push will evict.
func (r *RingBuffer[T]) IsFull() bool { return r.count == len(r.data) }

func (r *RingBuffer[T]) advance(i int) int {
	i++
	if i == len(r.data) {
		return 0
	}
	return i
}
