package texload

import (
	"testing"
	"time"
)

type staticPending []string

func (s staticPending) PendingKeys() []string { return s }

func TestWatchdogFiresOnceAtThreshold(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	w := NewWatchdog(5, staticPending{"gamedata/foo.dds"})
	for i := 1; i <= 10; i++ {
		w.stalled(i, b)
	}
	if w.Fired() != 1 {
		t.Errorf("Fired() = %d after 10 windows with threshold 5, want 1", w.Fired())
	}
}

func TestWatchdogRefiresOnPersistentStall(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	w := NewWatchdog(5, nil)
	// Cool-down re-arms at 4x the threshold, so a stall that outlives 20
	// windows reports a second time.
	for i := 1; i <= 25; i++ {
		w.stalled(i, b)
	}
	if w.Fired() != 2 {
		t.Errorf("Fired() = %d after 25 windows, want 2", w.Fired())
	}
}

func TestWatchdogResetRearms(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	w := NewWatchdog(3, nil)
	for i := 1; i <= 4; i++ {
		w.stalled(i, b)
	}
	if w.Fired() != 1 {
		t.Fatalf("Fired() = %d, want 1", w.Fired())
	}
	w.reset()
	for i := 1; i <= 4; i++ {
		w.stalled(i, b)
	}
	if w.Fired() != 2 {
		t.Errorf("Fired() = %d after reset and a new stall, want 2", w.Fired())
	}
}

func TestWatchdogNilSafe(t *testing.T) {
	var w *Watchdog
	b := NewBridge()
	defer b.Close()
	w.stalled(100, b)
	w.reset()
	if w.Fired() != 0 {
		t.Error("nil watchdog should report zero fires")
	}
}

func TestWatchdogDefaultThreshold(t *testing.T) {
	w := NewWatchdog(0, nil)
	if w.threshold != DefaultWatchdogThreshold {
		t.Errorf("threshold = %d, want %d", w.threshold, DefaultWatchdogThreshold)
	}
}

// End-to-end wiring: a wait that outlives the threshold produces a
// diagnostic and the wait itself is never aborted.
func TestWatchdogFiresDuringWait(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	b.SetPollWindow(5 * time.Millisecond)
	w := NewWatchdog(3, nil)
	b.SetWatchdog(w)

	c := NewCompletion[int]()
	go func() {
		time.Sleep(100 * time.Millisecond)
		c.Complete(1)
	}()
	b.WaitUntilComplete(c)
	if w.Fired() == 0 {
		t.Error("watchdog did not fire during a long stall")
	}
	if !c.Done() {
		t.Error("wait returned before the future settled")
	}
}
