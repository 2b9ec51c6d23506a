// Package parallel provides the background worker pool that runs texload's
// CPU-bound work: disk reads and software pixel decoding.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines for background load work.
//
// The pool distributes jobs across multiple workers, each with their own
// queue. Workers can steal jobs from other workers when their own queue is
// empty, which balances load when some decodes are much slower than others.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker job queues. Each worker primarily pulls from
	// its own queue but can steal from others.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting jobs.
	running atomic.Bool
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used. The pool starts
// immediately and workers begin waiting for jobs.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Buffer 4x workers: decode batches arrive in bursts at frame
	// boundaries and should not block the submitter.
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}

	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.queues[id]

	for {
		select {
		case <-p.done:
			// Drain remaining jobs before exiting; in-flight loads must
			// finish their buffer lifetimes even during teardown.
			p.drain(myQueue)
			return

		case job := <-myQueue:
			if job != nil {
				job()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				// No job available anywhere, block on own queue.
				select {
				case <-p.done:
					p.drain(myQueue)
					return
				case job := <-myQueue:
					if job != nil {
						job()
					}
				}
			}
		}
	}
}

// drain executes all remaining jobs in a queue.
func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			if job != nil {
				job()
			}
		default:
			return
		}
	}
}

// steal attempts to take a job from another worker's queue.
// Returns nil if none is available.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Submit sends a single job to the pool, choosing the worker with the
// shortest queue. Jobs report their outcome through their own completion
// signals; Submit itself never waits for the job. If the pool is closed,
// the job runs inline so no completion is ever lost.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil {
		return
	}
	if !p.running.Load() {
		fn()
		return
	}

	minLen := len(p.queues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if l := len(p.queues[i]); l < minLen {
			minLen = l
			minIdx = i
		}
	}

	select {
	case p.queues[minIdx] <- fn:
	case <-p.done:
		fn()
	}
}

// SubmitBatch distributes a group of related jobs round-robin across
// workers without waiting for completion. Jobs signal their own
// completions. If the pool is closed, remaining jobs run inline.
func (p *WorkerPool) SubmitBatch(fns []func()) {
	if len(fns) == 0 {
		return
	}
	for i, fn := range fns {
		if fn == nil {
			continue
		}
		if !p.running.Load() {
			fn()
			continue
		}
		select {
		case p.queues[i%p.workers] <- fn:
		case <-p.done:
			fn()
		}
	}
}

// Close gracefully shuts down the pool. It stops accepting new work, waits
// for all queued jobs to complete, and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}
