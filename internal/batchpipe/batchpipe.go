// Package batchpipe ties FramePool, CircularBatch, and a periodic force-push
// timer together to turn decoded frames from many streams into fixed-size
// cross-stream batches, and owns each stream's decode/read/drain lifecycle.
package batchpipe

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/circularbatch"
	"github.com/bournex/gpudecode/internal/decoder"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/framepool"
	"github.com/bournex/gpudecode/internal/mediasource"
)

// Timer period bounds, mirrored from config so this package stays usable
// without importing the CLI-facing config package directly.
const (
	MinTimeoutMS = 1
	MaxTimeoutMS = 50
)

// Config tunes batch geometry and the force-push timer period.
type Config struct {
	BatchSize  int
	BatchCount int
	TimeoutMS  int
}

func (c Config) clampedTimeout() int {
	switch {
	case c.TimeoutMS < MinTimeoutMS:
		return MinTimeoutMS
	case c.TimeoutMS > MaxTimeoutMS:
		return MaxTimeoutMS
	default:
		return c.TimeoutMS
	}
}

// BatchPipe is the shared sink every Coordinator-managed stream feeds
// decoded frames into. One BatchPipe is shared across all inputs of a run.
type BatchPipe struct {
	frames *framepool.FramePool
	ring   *circularbatch.CircularBatch[*framepool.Handle]

	stopCh    chan struct{}
	timerDone chan struct{}

	streamsMu sync.Mutex
	streams   sync.WaitGroup
}

// New creates a BatchPipe whose FramePool can hold up to framePoolCap live
// handles and which emits batches of cfg.BatchSize to onBatch, either when
// full or every cfg.TimeoutMS (clamped to [MinTimeoutMS, MaxTimeoutMS]).
func New(framePoolCap int, cfg Config, onBatch func([]*framepool.Handle)) *BatchPipe {
	bp := &BatchPipe{
		frames:    framepool.New(framePoolCap),
		stopCh:    make(chan struct{}),
		timerDone: make(chan struct{}),
	}
	bp.ring = circularbatch.New[*framepool.Handle](cfg.BatchSize, cfg.BatchCount, onBatch)
	go bp.runTimer(cfg.clampedTimeout())
	return bp
}

func (bp *BatchPipe) runTimer(timeoutMS int) {
	defer close(bp.timerDone)
	ticker := time.NewTicker(time.Duration(timeoutMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-bp.stopCh:
			return
		case <-ticker.C:
			bp.ring.ForcePush()
		}
	}
}

// InputFrame acquires a handle from the FramePool, copies src's fields into
// it (including its decoder_backref), and pushes it into the ring. If the
// push closes a batch, PushSwap is invoked inline so the caller's own
// goroutine does the emission work, matching §4.6.
func (bp *BatchPipe) InputFrame(src *frame.Frame) error {
	h, err := bp.frames.Get(src.TID)
	if err != nil {
		return fmt.Errorf("batchpipe: acquire handle: %w", err)
	}
	*h.Frame() = *src

	if bp.ring.Push(h) {
		bp.ring.PushSwap()
	}
	return nil
}

// StreamHandle owns one input's MediaSource + Decoder + drain goroutine.
type StreamHandle struct {
	decoder *decoder.Decoder
	source  *mediasource.MediaSource
	done    chan struct{}
}

// Wait blocks until the drain goroutine has exited (EOS reached or closed).
func (sh *StreamHandle) Wait() { <-sh.done }

// State reports the underlying decoder's state machine position, for
// periodic reporter snapshots.
func (sh *StreamHandle) State() decoder.State { return sh.decoder.State() }

// QueueLen reports the underlying decoder's current output queue depth.
func (sh *StreamHandle) QueueLen() int { return sh.decoder.QueueLen() }

// Close tears the stream down for a forced shutdown (as opposed to the
// drain goroutine exiting on its own after EOS). The decoder is closed
// first because that is what wakes a drain goroutine blocked inside
// GetFrame — stopping the reader alone cannot do that, since the block is
// on the decoder's output-queue condition variable, not on input. Once the
// decoder is down, stopping the reader and joining drain is just cleanup.
func (sh *StreamHandle) Close() error {
	closeErr := sh.decoder.Close()
	_ = sh.source.Close()
	sh.Wait()
	return closeErr
}

// StartupConfig bundles what Startup needs to construct a stream's Decoder.
type StartupConfig struct {
	Driver     driver.HWDriver
	Decoder    decoder.Config
	DevicePool *bufferpool.BufferPool
	HostPool   *bufferpool.BufferPool
}

// Startup constructs the Decoder and MediaSource for one input and spawns
// the drain goroutine that turns GetFrame results into InputFrame calls
// until the Last frame is seen or the stream is closed.
func (bp *BatchPipe) Startup(tid uint64, path string, cfg StartupConfig) (*StreamHandle, error) {
	d, err := decoder.New(tid, cfg.Driver, cfg.Decoder, cfg.DevicePool, cfg.HostPool)
	if err != nil {
		return nil, fmt.Errorf("batchpipe: open decoder for %s: %w", path, err)
	}
	src, err := mediasource.New(path, d)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("batchpipe: open source %s: %w", path, err)
	}

	sh := &StreamHandle{decoder: d, source: src, done: make(chan struct{})}
	bp.streams.Add(1)
	go bp.drain(sh)
	return sh, nil
}

func (bp *BatchPipe) drain(sh *StreamHandle) {
	defer bp.streams.Done()
	defer close(sh.done)

	for {
		f, err := sh.decoder.GetFrame()
		if err != nil {
			if errors.Is(err, decoder.ErrEOS) || errors.Is(err, decoder.ErrClosed) {
				return
			}
			return
		}
		if err := bp.InputFrame(f); err != nil {
			sh.decoder.PutFrame(f)
		}
		if f.Last {
			return
		}
	}
}

// Close stops the force-push timer and waits for every drain goroutine
// spawned via Startup to finish, then closes the FramePool. Callers are
// responsible for closing individual StreamHandles (and the downstream
// pipeline) first, per the LIFO shutdown order in §5.
func (bp *BatchPipe) Close() {
	select {
	case <-bp.stopCh:
	default:
		close(bp.stopCh)
	}
	<-bp.timerDone
	bp.streams.Wait()
	bp.ring.ForcePush()
	bp.frames.Close()
}

// FrameStats reports the shared FramePool's current occupancy.
func (bp *BatchPipe) FrameStats() framepool.Stats { return bp.frames.Stats() }

// Pending reports the number of frames written to the ring but not yet
// emitted in a batch.
func (bp *BatchPipe) Pending() int { return bp.ring.Pending() }
