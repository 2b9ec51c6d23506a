package texload

import "time"

// DefaultPollWindow bounds each blocking mailbox wait inside
// Bridge.WaitUntilComplete. The guaranteed wakeup Post makes the window a
// latency bound for foreign completions, not a correctness knob.
const DefaultPollWindow = time.Second

// Bridge routes callbacks between the goroutine that owns the GPU device
// (the owner goroutine) and background workers.
//
// Work posted from the owner goroutine lands in a private FIFO; work posted
// from anywhere else goes through a Mailbox. Update, callable only on the
// owner goroutine, drains both and runs every callback, so any state that
// is only ever touched inside bridged callbacks is owner-confined by
// construction. That is how texload guarantees GPU mutation never happens
// off the owner goroutine.
//
// Callbacks originating on the owner goroutine run in FIFO order; callbacks
// from different background goroutines interleave in mailbox-drain order.
// No cross-source total order is promised.
type Bridge struct {
	ownerID    uint64
	localQueue []WorkItem
	mailbox    *Mailbox[WorkItem]
	pollWindow time.Duration
	idle       func()
	watchdog   *Watchdog
}

// NewBridge creates a bridge owned by the calling goroutine. Update, Send's
// fast path, and WaitUntilComplete must be called from this same goroutine
// from then on.
func NewBridge() *Bridge {
	return &Bridge{
		ownerID:    goid(),
		mailbox:    NewMailbox[WorkItem](),
		pollWindow: DefaultPollWindow,
	}
}

// OnOwner reports whether the caller is the owner goroutine.
func (b *Bridge) OnOwner() bool { return goid() == b.ownerID }

// assertOwner panics unless called from the owner goroutine. Violations are
// programmer errors in the ConcurrencyError class and are never recoverable.
func (b *Bridge) assertOwner(op string) {
	if !b.OnOwner() {
		panic("texload: " + op + " called off the owner goroutine")
	}
}

// Post schedules fn to run during a future Update. From the owner goroutine
// it appends to the local FIFO; from anywhere else it enqueues to the
// mailbox. Post never blocks and promises FIFO order per source only.
func (b *Bridge) Post(fn func()) {
	item := WorkItem{Fn: fn}
	if b.OnOwner() {
		b.localQueue = append(b.localQueue, item)
		return
	}
	b.mailbox.Enqueue(item)
}

// Send runs fn on the owner goroutine and returns only after it has
// executed. On the owner goroutine fn runs immediately. Anywhere else the
// caller blocks until an Update cycle runs it.
func (b *Bridge) Send(fn func()) {
	if b.OnOwner() {
		fn()
		return
	}
	done := NewCompletion[struct{}]()
	b.mailbox.Enqueue(WorkItem{Fn: fn, Done: done})
	executed := make(chan struct{})
	done.OnDone(func() { close(executed) })
	<-executed
}

// Update drains the mailbox into the local FIFO and runs every queued
// callback to completion, repeating until both queues are empty. Callbacks
// may Post more work; it runs in the same Update call.
//
// Update must be called only from the owner goroutine.
func (b *Bridge) Update() {
	b.assertOwner("Update")
	// Nested Update (e.g. WaitUntilComplete inside a callback) is legal;
	// the outer drain loop picks up whatever remains.
	for {
		for {
			item, ok := b.mailbox.TryDequeue()
			if !ok {
				break
			}
			b.localQueue = append(b.localQueue, item)
		}
		if len(b.localQueue) == 0 {
			return
		}
		queue := b.localQueue
		b.localQueue = nil
		for _, item := range queue {
			item.run()
		}
	}
}

// WaitUntilComplete drives the bridge until f settles. It attaches a
// continuation that unconditionally posts a no-op wakeup, so even a future
// settled on a foreign executor ends the bounded mailbox wait within one
// poll window: the wakeup races harmlessly with, but never loses to, any
// ordering of completion versus polling.
//
// There is no cancellation; the watchdog diagnoses long stalls but never
// aborts them. Must be called from the owner goroutine.
func (b *Bridge) WaitUntilComplete(f Future) {
	b.assertOwner("WaitUntilComplete")

	f.OnDone(func() {
		// Wakeup must go through the mailbox even from the owner goroutine,
		// since DequeueWait only observes mailbox traffic.
		b.mailbox.Enqueue(WorkItem{})
	})

	var iterations int
	for {
		if b.idle != nil {
			// The hook may Post work (the loader resumes throttle-parked
			// routines here); the Update below runs it, so futures whose only
			// path to completion goes through the hook still settle.
			b.idle()
		}
		b.Update()
		if f.Done() {
			b.watchdog.reset()
			return
		}
		item, ok := b.mailbox.DequeueWait(b.pollWindow)
		if ok {
			b.localQueue = append(b.localQueue, item)
		} else {
			iterations++
			b.watchdog.stalled(iterations, b)
		}
	}
}

// MailboxDepth returns the approximate number of cross-goroutine callbacks
// waiting to be drained. Diagnostic only.
func (b *Bridge) MailboxDepth() int { return b.mailbox.Len() }

// SetPollWindow overrides the bounded-wait window used by
// WaitUntilComplete. Must be called from the owner goroutine before any
// concurrent use.
func (b *Bridge) SetPollWindow(d time.Duration) {
	if d > 0 {
		b.pollWindow = d
	}
}

// SetIdle registers fn to run on every WaitUntilComplete iteration, ahead
// of the queue drain. The loader hooks its memory-throttle pump in here so
// a blocking wait can still resume parked routines. Must be set from the
// owner goroutine before any concurrent use; pass nil to detach.
func (b *Bridge) SetIdle(fn func()) { b.idle = fn }

// SetWatchdog attaches a stall reporter to WaitUntilComplete. Pass nil to
// detach.
func (b *Bridge) SetWatchdog(w *Watchdog) { b.watchdog = w }

// Close shuts the mailbox down. Pending cross-goroutine work already
// enqueued is dropped; background producers must be quiesced first.
func (b *Bridge) Close() { b.mailbox.Close() }
