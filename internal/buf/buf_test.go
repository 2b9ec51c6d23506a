package buf

import "testing"

func TestPoolGetLength(t *testing.T) {
	p := NewPool(4)
	b := p.Get(100)
	if b.Len() != 100 {
		t.Errorf("Len = %d, want 100", b.Len())
	}
	if cap(b.Bytes()) < 100 {
		t.Errorf("cap = %d, want >= 100", cap(b.Bytes()))
	}
}

func TestPoolReuse(t *testing.T) {
	p := NewPool(4)
	a := p.Get(1000)
	mem := &a.Bytes()[0]
	a.Release()
	b := p.Get(900)
	if &b.Bytes()[0] != mem {
		t.Error("same-class Get after Release should reuse the memory")
	}
	if b.Len() != 900 {
		t.Errorf("reused buffer Len = %d, want 900", b.Len())
	}
}

func TestPoolClassSeparation(t *testing.T) {
	p := NewPool(4)
	small := p.Get(100)
	mem := &small.Bytes()[0]
	small.Release()
	big := p.Get(1 << 20)
	if &big.Bytes()[0] == mem {
		t.Error("a larger request must not reuse a smaller-class buffer")
	}
}

func TestReleaseIdempotent(t *testing.T) {
	p := NewPool(1)
	b := p.Get(10)
	b.Release()
	b.Release() // no-op, must not double-insert
	x := p.Get(10)
	y := p.Get(10)
	if &x.Bytes()[0] == &y.Bytes()[0] {
		t.Error("double Release handed the same memory out twice")
	}
}

// A stale Release from a previous holder must not return memory that has
// since been reissued to a new owner.
func TestStaleReleaseAfterReuse(t *testing.T) {
	p := NewPool(1)
	old := p.Get(10)
	old.Release()

	cur := p.Get(10) // reuses old's memory under a fresh guard
	old.Release()    // stale duplicate, must stay a no-op

	other := p.Get(10)
	if &other.Bytes()[0] == &cur.Bytes()[0] {
		t.Error("stale Release re-pooled memory that is still in use")
	}
	cur.Release()
	other.Release()
}

func TestReleaseNil(t *testing.T) {
	var b *Buffer
	b.Release() // must not panic
}

func TestPoolRetentionCap(t *testing.T) {
	p := NewPool(1)
	a := p.Get(10)
	b := p.Get(10)
	a.Release()
	b.Release() // over the cap, dropped
	if got := len(p.classes[classFor(10)]); got != 1 {
		t.Errorf("retained %d buffers, want 1", got)
	}
}

func TestClassFor(t *testing.T) {
	tests := []struct {
		n, class int
	}{
		{0, minClass},
		{1, minClass},
		{4096, minClass},
		{4097, minClass + 1},
		{1 << 20, 20},
	}
	for _, tt := range tests {
		if got := classFor(tt.n); got != tt.class {
			t.Errorf("classFor(%d) = %d, want %d", tt.n, got, tt.class)
		}
	}
}
