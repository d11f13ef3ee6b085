package bufferpool

import (
	"sync"
	"testing"
)

func TestNewClampsPoolSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"below minimum", 0, PoolMin},
		{"negative", -5, PoolMin},
		{"above maximum", PoolMax + 1, PoolMax},
		{"within range", 64, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(HostAllocator{}, tt.requested)
			if p.poolSize != tt.want {
				t.Errorf("poolSize = %d, want %d", p.poolSize, tt.want)
			}
		})
	}
}

func TestAllocGrowsThenRecycles(t *testing.T) {
	p := New(HostAllocator{}, 4)

	b1, err := p.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b1.Len() != 1024 {
		t.Fatalf("Len() = %d, want 1024", b1.Len())
	}

	if err := p.Free(b1); err != nil {
		t.Fatalf("Free: %v", err)
	}

	b2, err := p.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b2 != b1 {
		t.Errorf("Alloc did not recycle freed buffer of matching capacity")
	}
}

func TestFreeUnknownBuffer(t *testing.T) {
	p := New(HostAllocator{}, 4)
	stray := &Buffer{Data: make([]byte, 16)}
	if err := p.Free(stray); err != ErrUnknownBuffer {
		t.Errorf("Free(stray) = %v, want ErrUnknownBuffer", err)
	}
}

func TestPoolConservation(t *testing.T) {
	p := New(HostAllocator{}, 8)

	var mu sync.Mutex
	held := make([]*Buffer, 0)

	for i := 0; i < 8; i++ {
		b, err := p.Alloc(256)
		if err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		mu.Lock()
		held = append(held, b)
		mu.Unlock()
	}

	stats := p.Stats()
	if stats.Busy != 8 || stats.Free != 0 {
		t.Fatalf("stats = %+v, want Busy=8 Free=0", stats)
	}
	if stats.Busy+stats.Free > stats.PoolSize {
		t.Fatalf("pool conservation violated: %+v", stats)
	}

	for _, b := range held {
		if err := p.Free(b); err != nil {
			t.Fatalf("Free: %v", err)
		}
	}
	stats = p.Stats()
	if stats.Busy != 0 || stats.Free != 8 {
		t.Fatalf("stats after free = %+v, want Busy=0 Free=8", stats)
	}
}

func TestAllocReallocatesLargestFreeWhenSaturated(t *testing.T) {
	p := New(HostAllocator{}, 2)

	b1, err := p.Alloc(64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	b2, err := p.Alloc(128)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := p.Free(b1); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := p.Free(b2); err != nil {
		t.Fatalf("Free: %v", err)
	}

	// Pool is full (2/2 tracked) with two free buffers of capacity 64 and
	// 128; a request bigger than both must reallocate the largest free one.
	b3, err := p.Alloc(256)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if b3 != b2 {
		t.Errorf("Alloc(256) should reallocate the largest free buffer")
	}
	if b3.Len() != 256 {
		t.Errorf("Len() = %d, want 256", b3.Len())
	}

	stats := p.Stats()
	if stats.Busy+stats.Free != 2 {
		t.Fatalf("tracked buffer count drifted: %+v", stats)
	}
}

func TestCloseFreesEverything(t *testing.T) {
	p := New(HostAllocator{}, 4)
	b, err := p.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	p.Close()

	if stats := p.Stats(); stats.Busy != 0 || stats.Free != 0 {
		t.Errorf("stats after Close = %+v, want Busy=0 Free=0", stats)
	}
	if _, err := p.Alloc(32); err == nil {
		t.Error("Alloc after Close should fail")
	}
	_ = b
}
