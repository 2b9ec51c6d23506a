package texload

import "sync"

// Future is the read side of an asynchronous result, as consumed by
// Bridge.WaitUntilComplete. Both Completion and AsyncMutex lock futures
// satisfy it.
type Future interface {
	// Done reports whether the future has settled.
	Done() bool

	// OnDone registers f to run once the future settles. If the future is
	// already settled, f runs immediately on the calling goroutine.
	// Otherwise f runs on whatever goroutine settles the future; callbacks
	// that touch owner-goroutine state must route through a Bridge.
	OnDone(f func())
}

// Completion is a single-assignment asynchronous result. The zero value is
// ready to use. It settles exactly once, via Complete or Fail, and then
// reports the same value or error to every caller forever.
//
// Completion is safe for concurrent use.
type Completion[T any] struct {
	mu    sync.Mutex
	done  bool
	val   T
	err   error
	conts []func()
}

// NewCompletion returns an unsettled completion.
func NewCompletion[T any]() *Completion[T] { return &Completion[T]{} }

// CompletedOf returns a completion already settled with v.
func CompletedOf[T any](v T) *Completion[T] {
	c := &Completion[T]{}
	c.Complete(v)
	return c
}

// Complete settles the completion with a value. Settling twice is a
// programmer error and panics.
func (c *Completion[T]) Complete(v T) {
	c.settle(v, nil)
}

// Fail settles the completion with an error. Settling twice is a
// programmer error and panics.
func (c *Completion[T]) Fail(err error) {
	var zero T
	c.settle(zero, err)
}

func (c *Completion[T]) settle(v T, err error) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		panic("texload: completion settled twice")
	}
	c.done = true
	c.val = v
	c.err = err
	conts := c.conts
	c.conts = nil
	c.mu.Unlock()

	// Run continuations outside the lock; OnDone during a continuation must
	// not deadlock.
	for _, f := range conts {
		f()
	}
}

// Done reports whether the completion has settled.
func (c *Completion[T]) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Result returns the settled value or error. Calling Result before the
// completion settles is a programmer error and panics; gate on Done or
// drive the bridge with WaitUntilComplete first.
func (c *Completion[T]) Result() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		panic("texload: Result called on unsettled completion")
	}
	return c.val, c.err
}

// OnDone registers f to run when the completion settles. If already
// settled, f runs immediately on the calling goroutine.
func (c *Completion[T]) OnDone(f func()) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		f()
		return
	}
	c.conts = append(c.conts, f)
	c.mu.Unlock()
}
