// Package circularbatch implements the many-producer, single-emitting
// circular batch buffer that sits between per-stream decode output and the
// downstream pipeline stages.
package circularbatch

import "sync"

// CircularBatch is a slot array of batchSize*batchCount elements shared by
// many producer goroutines. Pushes are serialised by ringMu; closed batches
// are drained and handed to onBatch one at a time, serialised by swapMu so
// emission order matches closure order regardless of which goroutine happens
// to observe the close.
type CircularBatch[T any] struct {
	batchSize  int
	batchCount int
	capacity   uint64

	ringMu sync.Mutex
	slots  []T
	w      uint64 // absolute, ever-increasing write count

	swapMu    sync.Mutex
	nextDrain uint64 // absolute index of the next window owed to onBatch

	stagingMu sync.Mutex
	staging   [][]T // free-list of reusable staging buffers, sized batchCount

	onBatch func([]T)
}

// New creates a CircularBatch with the given geometry. onBatch is invoked
// synchronously by whichever goroutine calls PushSwap/ForcePush; it must not
// retain the slice past the call.
func New[T any](batchSize, batchCount int, onBatch func([]T)) *CircularBatch[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	if batchCount < 1 {
		batchCount = 1
	}
	return &CircularBatch[T]{
		batchSize:  batchSize,
		batchCount: batchCount,
		capacity:   uint64(batchSize * batchCount),
		slots:      make([]T, batchSize*batchCount),
		onBatch:    onBatch,
	}
}

// Push writes item at the current write cursor and advances it. It returns
// true iff this write closed a batch (the caller must then call PushSwap).
func (c *CircularBatch[T]) Push(item T) bool {
	c.ringMu.Lock()
	idx := c.w % c.capacity
	c.slots[idx] = item
	c.w++
	closed := c.w%uint64(c.batchSize) == 0
	c.ringMu.Unlock()
	return closed
}

// PushSwap drains the next closed window (in closure order) into a staging
// buffer and invokes onBatch with it. Safe to call concurrently from
// multiple producers and with ForcePush; each call drains at most one
// window, and does nothing when a ForcePush has already emitted the window
// it was owed.
func (c *CircularBatch[T]) PushSwap() {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	window := c.nextDrain
	start := (window % uint64(c.batchCount)) * uint64(c.batchSize)

	c.ringMu.Lock()
	if c.w < (window+1)*uint64(c.batchSize) {
		c.ringMu.Unlock()
		return
	}
	c.nextDrain++
	staging := c.getStaging()
	copy(staging, c.slots[start:start+uint64(c.batchSize)])
	var zero T
	for i := start; i < start+uint64(c.batchSize); i++ {
		c.slots[i] = zero
	}
	c.ringMu.Unlock()

	c.onBatch(staging)
	c.putStaging(staging)
}

// ForcePush emits the oldest window not yet drained without waiting for it
// to fill; if that window is still the one being written, the write cursor
// moves past it so future writes start a fresh one. A no-op if nothing has
// been written to that window since the last drain.
func (c *CircularBatch[T]) ForcePush() {
	c.swapMu.Lock()
	defer c.swapMu.Unlock()

	window := c.nextDrain
	start := window * uint64(c.batchSize)

	c.ringMu.Lock()
	if c.w <= start {
		c.ringMu.Unlock()
		return
	}
	count := c.w - start
	if count > uint64(c.batchSize) {
		count = uint64(c.batchSize)
	}
	ringStart := (window % uint64(c.batchCount)) * uint64(c.batchSize)

	staging := c.getStaging()[:count]
	var zero T
	for i := uint64(0); i < count; i++ {
		staging[i] = c.slots[ringStart+i]
		c.slots[ringStart+i] = zero
	}
	if end := (window + 1) * uint64(c.batchSize); c.w < end {
		c.w = end
	}
	c.nextDrain++
	c.ringMu.Unlock()

	c.onBatch(staging)
	c.putStaging(staging[:c.batchSize])
}

// getStaging pulls a reusable buffer from the free list, allocating a new
// one only when the list is empty.
func (c *CircularBatch[T]) getStaging() []T {
	c.stagingMu.Lock()
	defer c.stagingMu.Unlock()
	if n := len(c.staging); n > 0 {
		buf := c.staging[n-1]
		c.staging = c.staging[:n-1]
		return buf[:c.batchSize]
	}
	return make([]T, c.batchSize)
}

func (c *CircularBatch[T]) putStaging(buf []T) {
	var zero T
	for i := range buf {
		buf[i] = zero
	}
	c.stagingMu.Lock()
	defer c.stagingMu.Unlock()
	if len(c.staging) < c.batchCount {
		c.staging = append(c.staging, buf)
	}
}

// Pending returns the number of items written to the ring but not yet
// drained by PushSwap/ForcePush. For diagnostics and tests only.
func (c *CircularBatch[T]) Pending() int {
	c.swapMu.Lock()
	window := c.nextDrain
	c.swapMu.Unlock()

	c.ringMu.Lock()
	w := c.w
	c.ringMu.Unlock()

	start := window * uint64(c.batchSize)
	if w <= start {
		return 0
	}
	return int(w - start)
}
