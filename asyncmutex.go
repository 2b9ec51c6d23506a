package texload

import "sync"

// LockToken is proof of AsyncMutex ownership. It is issued by TryLock or by
// a resolved lock future, and consumed exactly once by Unlock.
type LockToken struct {
	m     *AsyncMutex
	spent bool
}

// LockFuture resolves to a LockToken once the lock is handed to the waiter.
// It satisfies Future, so the owner goroutine can drive it with
// Bridge.WaitUntilComplete; cooperative callers register OnDone instead.
type LockFuture = Completion[*LockToken]

// AsyncMutex is an exclusive-access primitive for cooperative callers that
// must not block a thread while waiting. Lock returns a future instead of
// blocking; Unlock hands the lock directly to the oldest waiter, so
// ownership is strictly FIFO and the lock never transiently appears free
// while waiters exist.
//
// AsyncMutex is safe for concurrent use.
type AsyncMutex struct {
	mu      sync.Mutex
	locked  bool
	closed  bool
	waiters []*LockFuture
}

// NewAsyncMutex creates an unlocked mutex.
func NewAsyncMutex() *AsyncMutex { return &AsyncMutex{} }

// TryLock acquires the lock if it is free, returning an ownership token.
// It never waits: ok is false whenever the lock is held, even if it would
// be handed over momentarily.
func (m *AsyncMutex) TryLock() (*LockToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		panic("texload: TryLock on closed AsyncMutex")
	}
	if m.locked {
		return nil, false
	}
	m.locked = true
	return &LockToken{m: m}, true
}

// Lock returns a future that resolves to an ownership token. If the lock is
// free it resolves immediately; otherwise the caller joins a FIFO queue.
// No waiter is ever skipped.
func (m *AsyncMutex) Lock() *LockFuture {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		panic("texload: Lock on closed AsyncMutex")
	}
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return CompletedOf(&LockToken{m: m})
	}
	f := NewCompletion[*LockToken]()
	m.waiters = append(m.waiters, f)
	m.mu.Unlock()
	return f
}

// Unlock releases the lock held by token. If waiters are queued, ownership
// passes directly to the oldest one; the lock never becomes observably
// free in between. Unlocking an unheld mutex, or reusing a spent token, is
// a programmer error and panics.
func (m *AsyncMutex) Unlock(token *LockToken) {
	if token == nil || token.m != m {
		panic("texload: Unlock with foreign token")
	}

	m.mu.Lock()
	if token.spent {
		m.mu.Unlock()
		panic("texload: Unlock with spent token")
	}
	if !m.locked {
		m.mu.Unlock()
		panic("texload: Unlock of unlocked AsyncMutex")
	}
	token.spent = true

	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters[0] = nil
		m.waiters = m.waiters[1:]
		// locked stays true: direct handoff.
		m.mu.Unlock()
		next.Complete(&LockToken{m: m})
		return
	}

	m.locked = false
	m.mu.Unlock()
}

// Close fails every pending lock future with ErrMutexClosed so no waiter
// hangs forever on a discarded mutex. A held token remains valid; its
// Unlock becomes a no-op release. Close is idempotent.
func (m *AsyncMutex) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	waiters := m.waiters
	m.waiters = nil
	m.mu.Unlock()

	for _, f := range waiters {
		f.Fail(ErrMutexClosed)
	}
}
