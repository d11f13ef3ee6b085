// Package decoder drives one hardware decode stream and owns its bounded
// output queue. It mediates between the driver's asynchronous callbacks and
// whatever consumer pulls frames out via GetFrame.
package decoder

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/frame"
)

// QueueStrategy selects the overflow policy applied when the output queue is
// at capacity when a new frame is ready for display.
type QueueStrategy int32

const (
	StrategyWait QueueStrategy = iota
	StrategyDropOldest
	StrategyDropNewest
)

// State is the per-stream decode state machine: Init -> (SequenceConfigured
// <-> Decoding) -> Draining -> Terminated.
type State int32

const (
	StateInit State = iota
	StateSequenceConfigured
	StateDecoding
	StateDraining
	StateTerminated
)

var (
	// ErrEOS is returned by GetFrame once the end-of-stream frame has been
	// consumed and the queue is empty.
	ErrEOS = errors.New("decoder: end of stream")
	// ErrClosed is returned by GetFrame and InputStream after Close.
	ErrClosed = errors.New("decoder: closed")
)

const (
	mapRetryBackoff   = 500 * time.Microsecond
	mapRetryAttempts  = 5
	nominalFrameTicks = 333667 // ~30fps in 100ns ticks
	jitterTicks       = 2000
)

// Config tunes one Decoder instance.
type Config struct {
	QueueLen       int
	MapToHost      bool
	DevicePoolSize int
	HostPoolSize   int
	Strategy       QueueStrategy
}

// Decoder drives a single hardware decode stream.
type Decoder struct {
	tid  uint64
	cfg  Config
	drv  driver.HWDriver
	strm driver.StreamHandle

	devicePool *bufferpool.BufferPool
	hostPool   *bufferpool.BufferPool

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []*frame.Frame
	state     atomic.Int32
	strategy  atomic.Int32
	closing   bool
	pendingEOS bool

	width, height uint32
	pitch         uint32
	epoch         int64

	frameNo atomic.Uint64
	rng     *rand.Rand
}

// New opens a decode stream against drv for producer id tid. The caller
// supplies the device and host buffer pools: one pair per stream, or one
// device pool shared across streams (see Config.SharedDevicePool at the
// coordinator level).
func New(tid uint64, drv driver.HWDriver, cfg Config, devicePool, hostPool *bufferpool.BufferPool) (*Decoder, error) {
	if cfg.QueueLen < 1 {
		cfg.QueueLen = 1
	}
	d := &Decoder{
		tid:        tid,
		cfg:        cfg,
		drv:        drv,
		devicePool: devicePool,
		hostPool:   hostPool,
		rng:        rand.New(rand.NewSource(int64(tid) + 1)),
	}
	d.cond = sync.NewCond(&d.mu)
	d.strategy.Store(int32(cfg.Strategy))
	d.state.Store(int32(StateInit))

	strm, err := drv.OpenStream(d)
	if err != nil {
		return nil, err
	}
	d.strm = strm
	return d, nil
}

// SetStrategy switches the overflow policy applied on a full output queue.
func (d *Decoder) SetStrategy(s QueueStrategy) { d.strategy.Store(int32(s)) }

func (d *Decoder) Strategy() QueueStrategy { return QueueStrategy(d.strategy.Load()) }

// State reports the decoder's current lifecycle state.
func (d *Decoder) State() State { return State(d.state.Load()) }

// InputStream submits encoded bytes to the driver's parser. A zero-length
// slice signals end-of-stream: Parse(nil) is allowed to run its flush to
// completion, synchronously producing any reorder-buffered pictures still
// pending via OnDisplay, before Last is stamped on whichever frame the
// flush actually queued last (or, if the flush produced nothing and the
// queue had already drained, EOS is reported directly on the next
// GetFrame). Marking Last before the flush runs would misplace it on a
// frame that isn't really last whenever the flush itself yields output.
func (d *Decoder) InputStream(data []byte) error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return ErrClosed
	}
	if len(data) == 0 {
		d.state.Store(int32(StateDraining))
		d.mu.Unlock()

		err := d.strm.Parse(nil)

		d.mu.Lock()
		if n := len(d.queue); n > 0 {
			d.queue[n-1].Last = true
		} else {
			d.pendingEOS = true
		}
		d.cond.Broadcast()
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()
	return d.strm.Parse(data)
}

// GetFrame blocks until a frame is available, the stream reaches end of
// stream, or the decoder is closed.
func (d *Decoder) GetFrame() (*frame.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if len(d.queue) > 0 {
			f := d.queue[0]
			d.queue = d.queue[1:]
			if f.Last {
				d.state.Store(int32(StateTerminated))
			}
			if d.cfg.MapToHost {
				d.copyToHostLocked(f)
			}
			return f, nil
		}
		if d.closing {
			return nil, ErrClosed
		}
		if d.pendingEOS {
			d.pendingEOS = false
			d.state.Store(int32(StateTerminated))
			return nil, ErrEOS
		}
		if State(d.state.Load()) == StateTerminated {
			return nil, ErrEOS
		}
		d.cond.Wait()
	}
}

func (d *Decoder) copyToHostLocked(f *frame.Frame) {
	if f.Device == nil || d.hostPool == nil {
		return
	}
	size := len(f.Device.Data)
	hb, err := d.hostPool.Alloc(size)
	if err != nil {
		return
	}
	copy(hb.Data, f.Device.Data)
	f.Host = hb
	f.HostPitch = f.DevicePitch
}

// PutFrame returns a frame's device and host buffers to their pools. It is
// the non-refcounted equivalent used when a frame never makes it into a
// FramePool handle (e.g. a drain loop that decides to discard it).
func (d *Decoder) PutFrame(f *frame.Frame) {
	if f.Device != nil {
		d.ReturnDevice(f.Device)
		f.Device = nil
	}
	if f.Host != nil {
		d.ReturnHost(f.Host)
		f.Host = nil
	}
}

// ReturnDevice implements frame.DeviceReturner: it hands a device buffer
// back to this decoder's device pool. Handle.Release calls this on the
// frame's backref, which decoder assigns to itself at enqueue time.
func (d *Decoder) ReturnDevice(buf *bufferpool.Buffer) {
	if d.devicePool != nil {
		_ = d.devicePool.Free(buf)
	}
}

// ReturnHost implements frame.DeviceReturner for the optional host copy.
func (d *Decoder) ReturnHost(buf *bufferpool.Buffer) {
	if d.hostPool != nil {
		_ = d.hostPool.Free(buf)
	}
}

// Close stops accepting new frames, releases any buffers still queued, and
// tears down the driver stream.
func (d *Decoder) Close() error {
	d.mu.Lock()
	d.closing = true
	drained := d.queue
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()

	for _, f := range drained {
		d.PutFrame(f)
	}
	d.state.Store(int32(StateTerminated))
	return d.strm.Close()
}

// --- driver.Callbacks ---

func (d *Decoder) OnSequence(codedWidth, codedHeight uint32) error {
	d.mu.Lock()
	d.width, d.height = codedWidth, codedHeight
	d.epoch = 0
	d.mu.Unlock()

	surfaces := d.cfg.QueueLen + 2
	d.strm.ConfigureSurfaces(surfaces)

	d.state.CompareAndSwap(int32(StateInit), int32(StateSequenceConfigured))
	d.state.CompareAndSwap(int32(StateDecoding), int32(StateSequenceConfigured))
	return nil
}

func (d *Decoder) OnDecodeSubmit(pictureIndex uint32) error {
	d.state.CompareAndSwap(int32(StateSequenceConfigured), int32(StateDecoding))
	return nil
}

// OnDisplay implements the backpressure policy of §4.3: map the picture,
// apply the queue strategy, copy into a pool buffer, and unconditionally
// unmap before returning.
func (d *Decoder) OnDisplay(pictureIndex uint32) error {
	var data []byte
	var pitch uint32
	var err error
	for attempt := 0; attempt < mapRetryAttempts; attempt++ {
		data, pitch, err = d.strm.Map(pictureIndex)
		if err == nil {
			break
		}
		time.Sleep(mapRetryBackoff)
	}
	defer func() { _ = d.strm.Unmap(pictureIndex) }()
	if err != nil {
		return err
	}

	d.mu.Lock()
	height := d.height
	size := len(data)

	for {
		n := len(d.queue)
		strategy := QueueStrategy(d.strategy.Load())

		if n < d.cfg.QueueLen {
			f, aerr := d.newFrameLocked(data, size, pitch, height)
			if aerr != nil {
				d.mu.Unlock()
				return aerr
			}
			d.queue = append(d.queue, f)
			d.cond.Broadcast()
			d.mu.Unlock()
			return nil
		}

		switch strategy {
		case StrategyDropOldest:
			f, aerr := d.newFrameLocked(data, size, pitch, height)
			if aerr != nil {
				d.mu.Unlock()
				return aerr
			}
			old := d.queue[0]
			d.queue = append(d.queue[1:], f)
			d.cond.Broadcast()
			d.mu.Unlock()
			d.PutFrame(old)
			return nil
		case StrategyDropNewest:
			d.mu.Unlock()
			return nil
		default: // StrategyWait
			d.mu.Unlock()
			time.Sleep(mapRetryBackoff)
			d.mu.Lock()
		}
	}
}

func (d *Decoder) newFrameLocked(data []byte, size int, pitch, height uint32) (*frame.Frame, error) {
	buf, err := d.devicePool.Alloc(size)
	if err != nil {
		return nil, err
	}
	copy(buf.Data, data)

	d.epoch += nominalFrameTicks
	jitter := int64(d.rng.Intn(2*jitterTicks+1) - jitterTicks)

	f := &frame.Frame{
		Width:       d.width,
		Height:      height,
		DevicePitch: pitch,
		Timestamp:   d.epoch + jitter,
		FrameNo:     d.frameNo.Add(1) - 1,
		TID:         d.tid,
		ProducerID:  d.tid,
		Device:      buf,
		Backref:     d,
	}
	return f, nil
}

// QueueLen reports the number of frames currently queued, for property
// tests asserting the qlen cap.
func (d *Decoder) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}
