package texload

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestBridgePostLocalFIFO(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Post(func() { order = append(order, i) })
	}
	if len(order) != 0 {
		t.Fatal("Post must not run callbacks before Update")
	}
	b.Update()
	if len(order) != 5 {
		t.Fatalf("ran %d callbacks, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("run order %v, want ascending", order)
		}
	}
}

func TestBridgePostFromWorker(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	done := make(chan struct{})
	var executed atomic.Bool
	go func() {
		b.Post(func() { executed.Store(true) })
		close(done)
	}()
	<-done
	if executed.Load() {
		t.Fatal("cross-goroutine Post must not run inline")
	}
	b.Update()
	if !executed.Load() {
		t.Fatal("Update did not drain the mailbox")
	}
}

func TestBridgeSendOnOwner(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	ran := false
	b.Send(func() { ran = true })
	if !ran {
		t.Fatal("Send on the owner goroutine must run immediately")
	}
}

func TestBridgeSendFromWorker(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	var ran atomic.Bool
	returned := make(chan struct{})
	go func() {
		b.Send(func() { ran.Store(true) })
		close(returned)
	}()
	// The worker must stay blocked until the owner pumps.
	select {
	case <-returned:
		t.Fatal("Send returned before Update ran the callback")
	case <-time.After(20 * time.Millisecond):
	}
	b.Update()
	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Send never returned after Update")
	}
	if !ran.Load() {
		t.Fatal("Send callback did not run")
	}
}

func TestBridgeUpdateRunsPostedDuringUpdate(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	var steps []string
	b.Post(func() {
		steps = append(steps, "outer")
		b.Post(func() { steps = append(steps, "inner") })
	})
	b.Update()
	if len(steps) != 2 || steps[0] != "outer" || steps[1] != "inner" {
		t.Fatalf("got %v, want [outer inner]", steps)
	}
}

func TestBridgeUpdateOffOwnerPanics(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	panicked := make(chan bool, 1)
	go func() {
		defer func() { panicked <- recover() != nil }()
		b.Update()
	}()
	if !<-panicked {
		t.Error("Update off the owner goroutine should panic")
	}
}

// A future settled on a foreign goroutine must end the wait promptly, not
// after a dangling full poll window.
func TestBridgeWaitUntilCompleteForeignWakeup(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	b.SetPollWindow(10 * time.Second)
	c := NewCompletion[int]()
	go func() {
		time.Sleep(30 * time.Millisecond)
		c.Complete(1)
	}()
	start := time.Now()
	b.WaitUntilComplete(c)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("WaitUntilComplete took %v despite wakeup post", elapsed)
	}
	if !c.Done() {
		t.Fatal("future not done after WaitUntilComplete")
	}
}

// Work posted through the bridge itself must be able to settle the awaited
// future: the classic load-routine resumption shape.
func TestBridgeWaitUntilCompleteSelfPumping(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	c := NewCompletion[struct{}]()
	go func() {
		b.Post(func() { c.Complete(struct{}{}) })
	}()
	deadline := time.AfterFunc(10*time.Second, func() {
		panic("WaitUntilComplete deadlocked")
	})
	defer deadline.Stop()
	b.WaitUntilComplete(c)
}

func TestBridgeWaitUntilCompleteAlreadyDone(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	b.WaitUntilComplete(CompletedOf(1))
}

// The idle hook runs on every wait turn, so a future whose only path to
// completion goes through the hook (the loader's throttle pump) still
// settles inside WaitUntilComplete.
func TestBridgeWaitUntilCompleteRunsIdleHook(t *testing.T) {
	b := NewBridge()
	defer b.Close()
	c := NewCompletion[struct{}]()
	b.SetIdle(func() {
		if !c.Done() {
			b.Post(func() { c.Complete(struct{}{}) })
		}
	})
	deadline := time.AfterFunc(10*time.Second, func() {
		panic("WaitUntilComplete deadlocked")
	})
	defer deadline.Stop()
	b.WaitUntilComplete(c)
}
