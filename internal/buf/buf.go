// Package buf provides pooled byte buffers with release-once guards.
//
// Read and decode buffers in texload are "unmanaged" in the sense that an
// in-flight background job may still reference them after every consumer
// has lost interest; each buffer is therefore released through exactly one
// guard that is safe to invoke from any exit path, including recovered
// panics. Releasing twice is a silent no-op; using a buffer after release
// is a caller bug.
package buf

import (
	"sync"
	"sync/atomic"
)

// bucket granularity: buffers are pooled by power-of-two capacity class to
// keep reuse high without a per-size map explosion.
const minClass = 12 // 4 KiB

// Buffer is a pooled byte buffer. Obtain via Pool.Get, release exactly once
// via Release.
//
// The pool recycles backing arrays, never Buffer values: each Get hands out
// a fresh guard, so a stale duplicate Release from a previous holder stays
// a no-op even after its memory has been reissued to a new owner.
type Buffer struct {
	data     []byte
	pool     *Pool
	class    int
	released atomic.Bool
}

// Bytes returns the buffer contents. The caller must not retain the slice
// past Release.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the current length of the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Release returns the buffer's memory to its pool. Safe to call from
// deferred guards on every exit path: only the first call has any effect.
func (b *Buffer) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	data := b.data
	b.data = nil
	if b.pool != nil && data != nil {
		b.pool.put(b.class, data[:cap(data)])
	}
}

// Pool reuses byte buffers across loads, grouped by capacity class, to
// reduce GC pressure when many similarly-sized files stream through.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	classes map[int][][]byte
	perSize int // max retained buffers per class
}

// NewPool creates a buffer pool retaining at most perClass buffers of each
// capacity class. perClass <= 0 keeps nothing (every Get allocates).
func NewPool(perClass int) *Pool {
	return &Pool{
		classes: make(map[int][][]byte),
		perSize: perClass,
	}
}

// Get returns a buffer with length n, reusing pooled memory when some of a
// sufficient class is available.
func (p *Pool) Get(n int) *Buffer {
	class := classFor(n)

	p.mu.Lock()
	bucket := p.classes[class]
	if len(bucket) > 0 {
		data := bucket[len(bucket)-1]
		bucket[len(bucket)-1] = nil
		p.classes[class] = bucket[:len(bucket)-1]
		p.mu.Unlock()
		return &Buffer{data: data[:n], pool: p, class: class}
	}
	p.mu.Unlock()

	return &Buffer{
		data:  make([]byte, n, 1<<class),
		pool:  p,
		class: class,
	}
}

func (p *Pool) put(class int, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.classes[class]) >= p.perSize {
		return // drop; GC reclaims it
	}
	p.classes[class] = append(p.classes[class], data)
}

// classFor returns the smallest power-of-two exponent whose size holds n.
func classFor(n int) int {
	class := minClass
	for 1<<class < n {
		class++
	}
	return class
}
