// Package bufferpool implements a size-bucketed reuse cache over a pluggable
// allocator, used for both host RAM and device VRAM buffers.
package bufferpool

import (
	"errors"
	"sync"
	"time"
)

// ErrUnknownBuffer is returned by Free when the buffer was never allocated by
// this pool, or was already freed.
var ErrUnknownBuffer = errors.New("bufferpool: free of unknown buffer")

const (
	// PoolMin and PoolMax clamp the configured pool size, matching the
	// original dedicated-pool's bounds on the number of tracked buffers.
	PoolMin = 2
	PoolMax = 1 << 16

	allocBackoff = 1500 * time.Microsecond
)

// Allocator performs the raw memory operations a BufferPool delegates to. A
// host allocator backs buffers with ordinary Go heap memory; a device
// allocator stands in for a GPU allocator (cudaMalloc/cudaFree equivalents)
// since the real hardware allocator is outside this system's scope.
type Allocator interface {
	Alloc(n int) []byte
	// Realloc produces a buffer of length n. Callers must not rely on the
	// previous contents being preserved: device memory has no realloc
	// primitive, so a real device allocator frees before allocating. Both
	// allocators in this package allocate a new slice and copy into it.
	Realloc(old []byte, n int) []byte
	Free(buf []byte)
	// Kind names the allocator for logging and reporter summaries.
	Kind() string
}

// Buffer is an {address, length} record tracked by a BufferPool. Its pointer
// identity is the "address" the pool's free/busy bookkeeping keys on.
type Buffer struct {
	Data []byte
}

// Len reports the buffer's usable capacity.
func (b *Buffer) Len() int { return cap(b.Data) }

// Stats is a point-in-time snapshot of a pool's bookkeeping, surfaced by the
// reporter the way the teacher periodically reports stage progress.
type Stats struct {
	Kind     string
	Free     int
	Busy     int
	PoolSize int
}

// BufferPool is a size-bucketed reuse cache: Alloc recycles a free buffer of
// sufficient capacity before ever growing the tracked set, and only resorts
// to reallocating the largest free buffer once the pool is full.
//
// Alloc never blocks other callers from calling Free: each saturated
// iteration unlocks before backing off, so the busy set can shrink between
// attempts.
type BufferPool struct {
	mu       sync.Mutex
	alloc    Allocator
	free     []*Buffer
	busy     map[*Buffer]struct{}
	poolSize int
	closed   bool
}

// New creates a BufferPool over the given allocator. poolSize is clamped to
// [PoolMin, PoolMax].
func New(alloc Allocator, poolSize int) *BufferPool {
	if poolSize < PoolMin {
		poolSize = PoolMin
	}
	if poolSize > PoolMax {
		poolSize = PoolMax
	}
	return &BufferPool{
		alloc:    alloc,
		busy:     make(map[*Buffer]struct{}),
		poolSize: poolSize,
	}
}

// Alloc returns a buffer with usable size >= n, recycling the smallest free
// buffer whose capacity is at least n, then growing the tracked set, then reallocating the largest free
// buffer, and finally backing off briefly and retrying if none of those
// apply.
func (p *BufferPool) Alloc(n int) (*Buffer, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, errors.New("bufferpool: closed")
		}

		if idx := firstFit(p.free, n); idx >= 0 {
			b := p.free[idx]
			p.free = append(p.free[:idx], p.free[idx+1:]...)
			b.Data = b.Data[:n]
			p.busy[b] = struct{}{}
			p.mu.Unlock()
			return b, nil
		}

		if len(p.free)+len(p.busy) < p.poolSize {
			b := &Buffer{Data: p.alloc.Alloc(n)}
			p.busy[b] = struct{}{}
			p.mu.Unlock()
			return b, nil
		}

		if len(p.free) > 0 {
			idx := largest(p.free)
			b := p.free[idx]
			p.free = append(p.free[:idx], p.free[idx+1:]...)
			b.Data = p.alloc.Realloc(b.Data, n)
			p.busy[b] = struct{}{}
			p.mu.Unlock()
			return b, nil
		}

		p.mu.Unlock()
		time.Sleep(allocBackoff)
	}
}

// Free moves buf from busy to free, preserving its capacity for future
// first-fit matches. It returns ErrUnknownBuffer if buf is not currently
// busy; the caller should log and continue, not treat this as fatal.
func (p *BufferPool) Free(buf *Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.busy[buf]; !ok {
		return ErrUnknownBuffer
	}
	delete(p.busy, buf)
	p.free = append(p.free, buf)
	return nil
}

// Stats returns a snapshot of the pool's current free/busy counts.
func (p *BufferPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Kind:     p.alloc.Kind(),
		Free:     len(p.free),
		Busy:     len(p.busy),
		PoolSize: p.poolSize,
	}
}

// Close frees every tracked buffer, free or busy, and rejects further Alloc
// calls. It does not wait for busy buffers to be returned first — callers
// must ensure all frames referencing this pool have already been released.
func (p *BufferPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, b := range p.free {
		p.alloc.Free(b.Data)
	}
	for b := range p.busy {
		p.alloc.Free(b.Data)
	}
	p.free = nil
	p.busy = make(map[*Buffer]struct{})
}

func firstFit(free []*Buffer, n int) int {
	best := -1
	for i, b := range free {
		if cap(b.Data) < n {
			continue
		}
		if best == -1 || cap(free[i].Data) < cap(free[best].Data) {
			best = i
		}
	}
	return best
}

func largest(free []*Buffer) int {
	best := 0
	for i, b := range free {
		if cap(b.Data) > cap(free[best].Data) {
			best = i
		}
		_ = b
	}
	return best
}
