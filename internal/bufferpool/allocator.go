package bufferpool

// HostAllocator backs buffers with ordinary Go heap memory, grounded on the
// size-bucketed sync.Pool idiom used for host byte buffers elsewhere in the
// pack: plain make/copy/drop, with reclamation left to the garbage collector
// once Free is called and the pool drops its reference.
type HostAllocator struct{}

func (HostAllocator) Alloc(n int) []byte { return make([]byte, n) }

func (HostAllocator) Realloc(old []byte, n int) []byte {
	buf := make([]byte, n)
	copy(buf, old)
	return buf
}

func (HostAllocator) Free([]byte) {}

func (HostAllocator) Kind() string { return "host" }

// SimAllocator stands in for a GPU device allocator (the cudaMalloc/cudaFree
// equivalent the real hardware driver would own). It has the same
// byte-slice-backed shape as HostAllocator because the device itself is out
// of this system's scope; what BufferPool exercises is the allocation
// bookkeeping, not the physical memory space.
type SimAllocator struct{}

func (SimAllocator) Alloc(n int) []byte { return make([]byte, n) }

func (SimAllocator) Realloc(old []byte, n int) []byte {
	buf := make([]byte, n)
	copy(buf, old)
	return buf
}

func (SimAllocator) Free([]byte) {}

func (SimAllocator) Kind() string { return "device" }
