package texload

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMailboxEnqueueDequeue(t *testing.T) {
	m := NewMailbox[int]()
	m.Enqueue(1)
	m.Enqueue(2)
	if m.Len() != 2 {
		t.Errorf("expected Len 2, got %d", m.Len())
	}
	v, ok := m.TryDequeue()
	if !ok || v != 1 {
		t.Errorf("TryDequeue: got %d,%v, want 1,true", v, ok)
	}
	v, ok = m.TryDequeue()
	if !ok || v != 2 {
		t.Errorf("TryDequeue: got %d,%v, want 2,true", v, ok)
	}
	if _, ok := m.TryDequeue(); ok {
		t.Error("TryDequeue on empty mailbox should return false")
	}
}

// A consumer blocked in Dequeue must observe an item enqueued after it
// started waiting without waiting out the full window.
func TestMailboxWakeup(t *testing.T) {
	m := NewMailbox[int]()
	got := make(chan int, 1)
	go func() {
		v, err := m.Dequeue(10 * time.Second)
		if err != nil {
			t.Errorf("Dequeue: %v", err)
			return
		}
		got <- v
	}()
	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	m.Enqueue(42)
	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
		if time.Since(start) > 2*time.Second {
			t.Errorf("wakeup took %v, expected well under the window", time.Since(start))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer never woke up")
	}
}

func TestMailboxDequeueWaitExpires(t *testing.T) {
	m := NewMailbox[int]()
	start := time.Now()
	_, ok := m.DequeueWait(30 * time.Millisecond)
	if ok {
		t.Error("DequeueWait on empty mailbox should report no item")
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("DequeueWait returned after %v, should have waited the window", elapsed)
	}
}

func TestMailboxClose(t *testing.T) {
	m := NewMailbox[int]()
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := m.Dequeue(10 * time.Second)
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	m.Close()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrMailboxClosed) {
				t.Errorf("got %v, want ErrMailboxClosed", err)
			}
			if !errors.Is(err, ErrConcurrency) {
				t.Errorf("ErrMailboxClosed should wrap ErrConcurrency")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("blocked consumer not released by Close")
		}
	}
}

func TestMailboxEnqueueAfterClosePanics(t *testing.T) {
	m := NewMailbox[int]()
	m.Close()
	defer func() {
		if recover() == nil {
			t.Error("Enqueue after Close should panic")
		}
	}()
	m.Enqueue(1)
}

// Conservation across concurrent producers and blocking consumers.
func TestMailboxConservation(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		perProd   = 1000
	)
	m := NewMailbox[int]()

	var prodWG sync.WaitGroup
	prodWG.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer prodWG.Done()
			for i := 0; i < perProd; i++ {
				m.Enqueue(p*perProd + i)
			}
		}(p)
	}

	var received atomic.Int64
	results := make(chan int, producers*perProd)
	var consWG sync.WaitGroup
	consWG.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consWG.Done()
			for received.Load() < producers*perProd {
				v, ok := m.DequeueWait(10 * time.Millisecond)
				if !ok {
					continue
				}
				received.Add(1)
				results <- v
			}
		}()
	}

	prodWG.Wait()
	consWG.Wait()
	close(results)

	seen := make(map[int]bool)
	for v := range results {
		if seen[v] {
			t.Fatalf("item %d delivered twice", v)
		}
		seen[v] = true
	}
	if len(seen) != producers*perProd {
		t.Fatalf("received %d items, want %d", len(seen), producers*perProd)
	}
}

func TestWorkItemRun(t *testing.T) {
	var ran bool
	done := NewCompletion[struct{}]()
	item := WorkItem{Fn: func() { ran = true }, Done: done}
	item.run()
	if !ran {
		t.Error("Fn did not run")
	}
	if !done.Done() {
		t.Error("Done completion not settled")
	}
}
