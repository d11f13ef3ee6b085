package framepool

import (
	"testing"
	"time"
)

func TestGetGrowsUpToCapacity(t *testing.T) {
	p := New(2)

	h1, err := p.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h2, err := p.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h1 == h2 {
		t.Fatal("Get returned the same handle twice while both are live")
	}

	done := make(chan *Handle, 1)
	go func() {
		h, err := p.Get(1)
		if err != nil {
			t.Error(err)
			return
		}
		done <- h
	}()

	select {
	case <-done:
		t.Fatal("Get should block when pool is saturated")
	case <-time.After(20 * time.Millisecond):
	}

	h1.Release()

	select {
	case h3 := <-done:
		if h3 != h1 {
			t.Error("Get after Release should hand back the freed handle")
		}
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Release")
	}

	h2.Release()
}

func TestReleaseReturnsBuffersExactlyOnce(t *testing.T) {
	p := New(4)
	h, err := p.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	h2 := h.AddRef()
	if h2 != h {
		t.Fatal("AddRef must return the same handle")
	}

	h.Release()
	// still one ref outstanding; pool stats must show it busy
	stats := p.Stats()
	if stats.Busy != 1 {
		t.Fatalf("Stats().Busy = %d after first release, want 1", stats.Busy)
	}

	h.Release()
	stats = p.Stats()
	if stats.Busy != 0 || stats.Free != 1 {
		t.Fatalf("Stats() = %+v after final release, want Busy=0 Free=1", stats)
	}
}

func TestCloseDrainsBusyHandles(t *testing.T) {
	p := New(1)
	h, err := p.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before the outstanding handle was released")
	case <-time.After(20 * time.Millisecond):
	}

	h.Release()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the handle drained")
	}

	if _, err := p.Get(1); err != ErrClosed {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
}
