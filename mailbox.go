package texload

import (
	"sync/atomic"
	"time"

	"github.com/gogpu/texload/internal/lfqueue"
)

// WorkItem is the unit exchanged through a Mailbox and the Bridge's
// internal FIFOs: a deferred callback plus an optional completion that is
// settled after the callback runs.
type WorkItem struct {
	// Fn is the deferred callback. A nil Fn is a pure wakeup: it does
	// nothing but still counts as mailbox traffic.
	Fn func()

	// Done, when non-nil, is completed after Fn returns. Send-style callers
	// block on it.
	Done *Completion[struct{}]
}

// run executes the callback and settles the completion, if any.
func (w WorkItem) run() {
	if w.Fn != nil {
		w.Fn()
	}
	if w.Done != nil {
		w.Done.Complete(struct{}{})
	}
}

// Mailbox is a multi-producer multi-consumer handoff queue with a
// non-blocking fast path and a blocking, lost-wakeup-proof slow path.
//
// Enqueue pushes onto a lock-free queue and then publishes a wake token;
// Dequeue retries the lock-free pop before every wait, so an item enqueued
// between an empty check and the wait can never be missed: either the pop
// retry sees it, or the wake token is still pending and ends the wait
// immediately.
//
// Mailbox is safe for concurrent use.
type Mailbox[T any] struct {
	q      *lfqueue.Queue[T]
	wake   chan struct{} // 1-buffered wake token
	closed atomic.Bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		q:    lfqueue.New[T](),
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends an item. It never blocks and may be called from any
// goroutine. Enqueue after Close is a programmer error and panics.
func (m *Mailbox[T]) Enqueue(v T) {
	if m.closed.Load() {
		panic("texload: enqueue on closed mailbox")
	}
	m.q.Push(v)
	m.nudge()
}

// TryDequeue removes the front item without blocking. The second return is
// false when the mailbox was empty.
func (m *Mailbox[T]) TryDequeue() (T, bool) {
	return m.q.Pop()
}

// Dequeue removes the front item, blocking until one is available or the
// mailbox is closed. window bounds each individual wait, not the total
// call: a timed wait that expires without data re-checks the queue and
// waits again, so spurious and stolen wakeups are harmless.
//
// Returns ErrMailboxClosed once the mailbox is closed and drained.
func (m *Mailbox[T]) Dequeue(window time.Duration) (T, error) {
	if window <= 0 {
		window = time.Second
	}
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		if v, ok := m.q.Pop(); ok {
			// With multiple consumers a single wake token can cover several
			// queued items; pass it on if there is still work behind us.
			if !m.q.Empty() {
				m.nudge()
			}
			return v, nil
		}
		if m.closed.Load() {
			m.nudge() // pass the close wakeup on to sibling consumers
			var zero T
			return zero, ErrMailboxClosed
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(window)

		select {
		case <-m.wake:
		case <-timer.C:
		}
	}
}

// DequeueWait blocks for at most window waiting for an item, returning
// ok=false on expiry instead of waiting again. The Bridge uses this for
// its bounded polling loop.
func (m *Mailbox[T]) DequeueWait(window time.Duration) (T, bool) {
	if v, ok := m.q.Pop(); ok {
		if !m.q.Empty() {
			m.nudge()
		}
		return v, true
	}

	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case <-m.wake:
			if v, ok := m.q.Pop(); ok {
				if !m.q.Empty() {
					m.nudge()
				}
				return v, true
			}
			// Token consumed but another consumer won the item; keep
			// waiting out the window.
		case <-timer.C:
			v, ok := m.q.Pop()
			return v, ok
		}
	}
}

// Len returns an approximate queue depth for diagnostics.
func (m *Mailbox[T]) Len() int { return m.q.Len() }

// Close marks the mailbox closed and wakes all blocked consumers. Items
// already enqueued remain dequeueable; Dequeue returns ErrMailboxClosed
// only once the queue is drained. Close is idempotent.
func (m *Mailbox[T]) Close() {
	if m.closed.CompareAndSwap(false, true) {
		// A single token is enough: each consumer that observes the closed
		// flag re-nudges before returning.
		m.nudge()
	}
}

// nudge publishes a wake token if none is pending.
func (m *Mailbox[T]) nudge() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
