package texload

import (
	"errors"
	"testing"
)

func TestCompletionComplete(t *testing.T) {
	c := NewCompletion[int]()
	if c.Done() {
		t.Error("fresh completion should not be done")
	}
	c.Complete(7)
	if !c.Done() {
		t.Error("completion should be done after Complete")
	}
	v, err := c.Result()
	if err != nil || v != 7 {
		t.Errorf("Result: got %d,%v, want 7,nil", v, err)
	}
}

func TestCompletionFail(t *testing.T) {
	c := NewCompletion[int]()
	want := errors.New("boom")
	c.Fail(want)
	if _, err := c.Result(); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestCompletionDoubleSettlePanics(t *testing.T) {
	c := NewCompletion[int]()
	c.Complete(1)
	defer func() {
		if recover() == nil {
			t.Error("second settle should panic")
		}
	}()
	c.Fail(errors.New("late"))
}

func TestCompletionResultUnsettledPanics(t *testing.T) {
	c := NewCompletion[int]()
	defer func() {
		if recover() == nil {
			t.Error("Result on unsettled completion should panic")
		}
	}()
	c.Result()
}

func TestCompletionOnDone(t *testing.T) {
	c := NewCompletion[int]()
	var calls []int
	c.OnDone(func() { calls = append(calls, 1) })
	c.OnDone(func() { calls = append(calls, 2) })
	c.Complete(0)
	// Registered after settling: runs immediately.
	c.OnDone(func() { calls = append(calls, 3) })
	if len(calls) != 3 || calls[0] != 1 || calls[1] != 2 || calls[2] != 3 {
		t.Errorf("continuations ran as %v, want [1 2 3]", calls)
	}
}

func TestCompletedOf(t *testing.T) {
	c := CompletedOf("x")
	if !c.Done() {
		t.Error("CompletedOf should be settled")
	}
	v, err := c.Result()
	if err != nil || v != "x" {
		t.Errorf("got %q,%v", v, err)
	}
}
