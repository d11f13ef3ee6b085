package decoder

import (
	"testing"
	"time"

	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/driver"
)

// picturePayload matches the simulated driver's per-picture stride, so each
// chunk pump submits is decoded as exactly one picture.
const picturePayload = 4096

func newTestDecoder(t *testing.T, qlen int, strategy QueueStrategy) *Decoder {
	t.Helper()
	devicePool := bufferpool.New(bufferpool.SimAllocator{}, 32)
	hostPool := bufferpool.New(bufferpool.HostAllocator{}, 32)
	cfg := Config{QueueLen: qlen, Strategy: strategy, DevicePoolSize: 32, HostPoolSize: 32}
	d, err := New(1, driver.NewSimulated(), cfg, devicePool, hostPool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func pump(t *testing.T, d *Decoder, chunks int) {
	t.Helper()
	for i := 0; i < chunks; i++ {
		if err := d.InputStream(make([]byte, picturePayload)); err != nil {
			t.Fatalf("InputStream: %v", err)
		}
	}
}

func TestQueueCapRespected(t *testing.T) {
	d := newTestDecoder(t, 4, StrategyDropNewest)
	pump(t, d, 10)

	if n := d.QueueLen(); n > 4 {
		t.Errorf("QueueLen() = %d, want <= 4", n)
	}
}

func TestDropOldestKeepsMonotonicFrameNo(t *testing.T) {
	d := newTestDecoder(t, 2, StrategyDropOldest)
	pump(t, d, 6)
	if err := d.InputStream(nil); err != nil {
		t.Fatalf("InputStream(EOS): %v", err)
	}

	var last uint64
	first := true
	for {
		f, err := d.GetFrame()
		if err == ErrEOS {
			break
		}
		if err != nil {
			t.Fatalf("GetFrame: %v", err)
		}
		if !first && f.FrameNo <= last {
			t.Errorf("frame_no not strictly increasing: %d after %d", f.FrameNo, last)
		}
		first = false
		last = f.FrameNo
		d.PutFrame(f)
		if f.Last {
			break
		}
		select {
		case <-time.After(time.Millisecond):
		}
	}

	for {
		f, err := d.GetFrame()
		if err == ErrEOS {
			break
		}
		if err != nil {
			t.Fatalf("GetFrame: %v", err)
		}
		d.PutFrame(f)
	}
}

func TestEndOfStreamMarksLastFrame(t *testing.T) {
	d := newTestDecoder(t, 8, StrategyWait)
	pump(t, d, 3)
	if err := d.InputStream(nil); err != nil {
		t.Fatalf("InputStream(EOS): %v", err)
	}

	var sawLast bool
	for {
		f, err := d.GetFrame()
		if err == ErrEOS {
			break
		}
		if err != nil {
			t.Fatalf("GetFrame: %v", err)
		}
		if f.Last {
			sawLast = true
		}
		d.PutFrame(f)
	}
	if !sawLast {
		t.Error("no frame was marked Last before EOS")
	}
}

func TestCloseStopsNewFrames(t *testing.T) {
	d := newTestDecoder(t, 8, StrategyWait)
	pump(t, d, 1)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.InputStream(make([]byte, picturePayload)); err != ErrClosed {
		t.Errorf("InputStream after Close = %v, want ErrClosed", err)
	}
}
