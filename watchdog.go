package texload

import "runtime"

// Watchdog defaults.
const (
	// DefaultWatchdogThreshold is the number of expired poll windows after
	// which a stalled WaitUntilComplete is reported.
	DefaultWatchdogThreshold = 30

	// defaultRefireFactor scales the threshold into the second, larger
	// threshold that re-arms reporting for a persistent stall.
	defaultRefireFactor = 4
)

// PendingLister enumerates the resource keys still in flight. The Loader
// implements it; the watchdog uses it to name what the stalled wait is
// probably waiting for.
type PendingLister interface {
	PendingKeys() []string
}

// Watchdog diagnoses apparent deadlocks of the owner goroutine. It counts
// expired poll windows inside Bridge.WaitUntilComplete; past a threshold it
// emits a one-time diagnostic snapshot (heap watermark, pending resource
// keys, mailbox depth) and arms a cool-down so a single stall is not
// re-reported every window. If the stall persists past a second, larger
// threshold the cool-down resets and it may fire again.
//
// The watchdog only diagnoses. It never cancels or unblocks anything.
//
// Watchdog state is touched only from the owner goroutine.
type Watchdog struct {
	threshold int
	refireAt  int
	pending   PendingLister
	fired     bool
	fireCount int
}

// NewWatchdog creates a watchdog firing after threshold expired poll
// windows. A threshold <= 0 selects DefaultWatchdogThreshold. pending may
// be nil.
func NewWatchdog(threshold int, pending PendingLister) *Watchdog {
	if threshold <= 0 {
		threshold = DefaultWatchdogThreshold
	}
	return &Watchdog{
		threshold: threshold,
		refireAt:  threshold * defaultRefireFactor,
		pending:   pending,
	}
}

// Fired reports how many diagnostics this watchdog has emitted.
func (w *Watchdog) Fired() int {
	if w == nil {
		return 0
	}
	return w.fireCount
}

// stalled records that iterations poll windows have expired without the
// awaited future settling, and fires the diagnostic when thresholds are
// crossed.
func (w *Watchdog) stalled(iterations int, b *Bridge) {
	if w == nil {
		return
	}
	if iterations >= w.refireAt {
		// Persistent stall: re-arm so the next threshold crossing reports
		// again. The effective next report lands at refireAt + threshold.
		w.fired = false
		w.refireAt += w.refireAt
	}
	if w.fired || iterations < w.threshold {
		return
	}
	w.fired = true
	w.fireCount++

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var keys []string
	if w.pending != nil {
		keys = w.pending.PendingKeys()
	}
	Logger().Warn("texload: owner goroutine blocked on a load that is not completing",
		"blockedWindows", iterations,
		"heapInUse", ms.HeapInuse,
		"pendingKeys", keys,
		"mailboxDepth", b.MailboxDepth(),
	)
}

// reset clears stall tracking after the awaited future settles.
func (w *Watchdog) reset() {
	if w == nil {
		return
	}
	w.fired = false
	w.refireAt = w.threshold * defaultRefireFactor
}
