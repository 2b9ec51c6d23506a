// Package lfqueue implements an unbounded lock-free multi-producer
// multi-consumer FIFO queue.
//
// It is the fast path of the texload mailbox: the common case of a
// TryDequeue against a non-empty queue completes without taking any lock.
// The implementation is the classic Michael-Scott linked queue with a
// permanent dummy node, built on atomic.Pointer.
package lfqueue

import "sync/atomic"

type node[T any] struct {
	next atomic.Pointer[node[T]]
	val  T
}

// Queue is an unbounded lock-free FIFO queue. The zero value is not usable;
// call New.
//
// Queue is safe for concurrent use by any number of producers and
// consumers.
type Queue[T any] struct {
	head atomic.Pointer[node[T]] // dummy; head.next is the front
	tail atomic.Pointer[node[T]]
	size atomic.Int64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	dummy := &node[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Push appends v to the back of the queue. It never blocks.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{val: v}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging; help it along and retry.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// Pop removes and returns the front element. The second return is false
// when the queue is empty at the time of the call.
func (q *Queue[T]) Pop() (T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			var zero T
			return zero, false
		}
		if head == tail {
			// Queue non-empty but tail lagging; help it along.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			q.size.Add(-1)
			v := next.val
			var zero T
			next.val = zero // release references held by the new dummy
			return v, true
		}
	}
}

// Len returns an approximate element count. It is exact only when no
// concurrent Push/Pop is in flight; use it for diagnostics, not control
// flow.
func (q *Queue[T]) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Empty reports whether the queue appeared empty at the time of the call.
func (q *Queue[T]) Empty() bool {
	return q.head.Load().next.Load() == nil
}
