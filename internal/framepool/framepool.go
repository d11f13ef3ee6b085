// Package framepool implements a fixed-capacity pool of reference-counted
// frame handles, decoupling handle lifetime from the device/host buffers a
// frame temporarily carries.
package framepool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bournex/gpudecode/internal/frame"
)

// ErrClosed is returned by Get once the pool has been closed for shutdown.
var ErrClosed = errors.New("framepool: closed")

// Handle is an intrusively reference-counted frame. Downstream stages copy
// handles freely via AddRef; the underlying frame and its device/host
// buffers return to their pools only once the last reference is released.
type Handle struct {
	frame  *frame.Frame
	refcnt atomic.Int32
	pool   *FramePool
}

// Frame returns the handle's underlying frame record. Callers must not
// retain the pointer past Release.
func (h *Handle) Frame() *frame.Frame { return h.frame }

// AddRef increments the handle's reference count and returns it, so callers
// can write `next := h.AddRef()` when handing a copy to another stage.
func (h *Handle) AddRef() *Handle {
	h.refcnt.Add(1)
	return h
}

// Release decrements the reference count. On the transition to zero it asks
// the frame's backref (its owning decoder) to return the device and host
// buffers, then returns the handle itself to the free list. Release is safe
// to call exactly once per AddRef/Get.
func (h *Handle) Release() {
	if h.refcnt.Add(-1) != 0 {
		return
	}
	f := h.frame
	if f.Backref != nil {
		if f.Device != nil {
			f.Backref.ReturnDevice(f.Device)
		}
		if f.Host != nil {
			f.Backref.ReturnHost(f.Host)
		}
	}
	f.Reset()
	h.pool.put(h)
}

// FramePool hands out Handles up to a fixed capacity, blocking Get via a
// condition variable while saturated rather than busy-waiting.
type FramePool struct {
	mu   sync.Mutex
	cond *sync.Cond
	free []*Handle
	cap  int
	busy int
	quit bool
}

// New creates a FramePool able to track at most capacity live handles
// (free + busy) at once.
func New(capacity int) *FramePool {
	p := &FramePool{cap: capacity}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Get returns a handle owned by the given producer stream id, blocking until
// one becomes free or the pool has room to grow. It returns ErrClosed once
// the pool has begun shutdown.
func (p *FramePool) Get(tid uint64) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.quit {
			return nil, ErrClosed
		}
		if n := len(p.free); n > 0 {
			h := p.free[n-1]
			p.free = p.free[:n-1]
			h.refcnt.Store(1)
			h.frame.TID = tid
			p.busy++
			return h, nil
		}
		if p.busy+len(p.free) < p.cap {
			h := &Handle{frame: &frame.Frame{TID: tid}, pool: p}
			h.refcnt.Store(1)
			p.busy++
			return h, nil
		}
		p.cond.Wait()
	}
}

func (p *FramePool) put(h *Handle) {
	p.mu.Lock()
	p.busy--
	p.free = append(p.free, h)
	// Broadcast, not Signal: a Get waiter and Close's drain wait share this
	// cond, and Signal could wake the wrong one and leave Close parked.
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Close marks the pool closed, so every further Get fails with ErrClosed,
// then blocks until every outstanding handle has been released. It does not free the handles
// themselves — they are plain Go values collected by the GC.
func (p *FramePool) Close() {
	p.mu.Lock()
	p.quit = true
	p.cond.Broadcast()
	for p.busy > 0 {
		p.cond.Wait()
	}
	p.mu.Unlock()
}

// Stats reports the pool's current free/busy/capacity counts.
type Stats struct {
	Free, Busy, Capacity int
}

func (p *FramePool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Free: len(p.free), Busy: p.busy, Capacity: p.cap}
}
