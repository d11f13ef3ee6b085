// Package driver defines the interface this system expects from the
// hardware decode driver and a process-wide initialization guard for it. The
// real driver — parser, decoder, and device memory mapping — is an external
// collaborator out of this system's scope; only the shape it must present is
// specified here, plus a simulated implementation used to exercise the rest
// of the pipeline without real hardware.
package driver

import "sync"

// Callbacks is implemented by a Decoder and invoked by the driver as it
// parses a stream. In the original C driver these are dispatched through
// function-pointer trampolines tied to an opaque context pointer; in Go the
// interface itself is the dispatch mechanism, so no trampoline is needed.
type Callbacks interface {
	// OnSequence fires when the stream's coded resolution is first known or
	// changes. The decoder recreates its decode/display surfaces here.
	OnSequence(codedWidth, codedHeight uint32) error
	// OnDecodeSubmit fires once picture parameters for pictureIndex have
	// been submitted to the hardware decoder.
	OnDecodeSubmit(pictureIndex uint32) error
	// OnDisplay fires once pictureIndex is ready to be mapped and consumed.
	OnDisplay(pictureIndex uint32) error
}

// StreamHandle is the per-stream handle a driver hands back from OpenStream.
type StreamHandle interface {
	// Parse submits a chunk of encoded bytes. A zero-length slice signals
	// end-of-stream.
	Parse(data []byte) error
	// ConfigureSurfaces tunes the number of decode/display surfaces the
	// driver keeps in flight, called from within OnSequence per §4.3.
	ConfigureSurfaces(n int)
	// Map returns the device pointer and pitch for a displayed picture.
	// Real hardware mapping can transiently fail; callers retry with
	// backoff.
	Map(pictureIndex uint32) (data []byte, pitch uint32, err error)
	// Unmap releases a mapped picture so the driver may recycle its
	// surface. Unmap failure is logged and ignored by callers.
	Unmap(pictureIndex uint32) error
	// Close tears down the stream's decoder instance.
	Close() error
}

// HWDriver opens decode streams against a shared hardware context.
type HWDriver interface {
	OpenStream(cb Callbacks) (StreamHandle, error)
}

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	refcount   int
)

// Init acquires the process-wide hardware context, matching the original's
// single process-level initialization requirement. It is safe to call from
// multiple goroutines; only the first call does the real work.
func Init() {
	initOnce.Do(func() {})
	shutdownMu.Lock()
	refcount++
	shutdownMu.Unlock()
}

// Shutdown releases a reference to the process-wide hardware context
// acquired by Init. It is a no-op stand-in: the real driver would tear down
// its context here once refcount reaches zero.
func Shutdown() {
	shutdownMu.Lock()
	if refcount > 0 {
		refcount--
	}
	shutdownMu.Unlock()
}
