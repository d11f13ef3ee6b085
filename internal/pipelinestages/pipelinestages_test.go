package pipelinestages

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/framepool"
	"github.com/bournex/gpudecode/internal/reporter"
)

type fakeReturner struct{}

func (fakeReturner) ReturnDevice(*bufferpool.Buffer) {}
func (fakeReturner) ReturnHost(*bufferpool.Buffer)   {}

func newHandles(t *testing.T, n int) (*framepool.FramePool, []*framepool.Handle) {
	t.Helper()
	pool := framepool.New(n)
	handles := make([]*framepool.Handle, n)
	for i := 0; i < n; i++ {
		h, err := pool.Get(1)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		h.Frame().Backref = fakeReturner{}
		handles[i] = h
	}
	return pool, handles
}

func TestPipelineProcessesAndReleasesBatch(t *testing.T) {
	var processed atomic.Int32
	colorConvert := func(f *frame.Frame) error {
		processed.Add(1)
		return nil
	}

	p := Default(2, 4, reporter.NullReporter{}, colorConvert)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	pool, handles := newHandles(t, 8)
	p.Submit(handles)
	p.Stop()

	if got := processed.Load(); got != 8 {
		t.Errorf("colorConvert called %d times, want 8", got)
	}
	if stats := pool.Stats(); stats.Busy != 0 {
		t.Errorf("pool busy = %d after pipeline drained, want 0", stats.Busy)
	}
}

func TestPipelineDropsOnStageError(t *testing.T) {
	var warnings int32
	rep := &countingReporter{}
	failing := func(f *frame.Frame) error { return errors.New("boom") }

	p := Default(1, 4, rep, failing)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	pool, handles := newHandles(t, 3)
	p.Submit(handles)
	p.Stop()

	warnings = atomic.LoadInt32(&rep.warnings)
	if warnings == 0 {
		t.Error("expected at least one Warning for dropped frames")
	}
	if stats := pool.Stats(); stats.Busy != 0 {
		t.Errorf("pool busy = %d after dropped frames, want 0", stats.Busy)
	}
}

func TestSubmitAfterStopReleasesImmediately(t *testing.T) {
	p := Default(1, 4, reporter.NullReporter{}, func(*frame.Frame) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Stop()

	pool, handles := newHandles(t, 2)
	p.Submit(handles)

	deadline := time.After(time.Second)
	for {
		if pool.Stats().Busy == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("handles not released after Submit post-Stop")
		case <-time.After(time.Millisecond):
		}
	}
}

type countingReporter struct {
	reporter.NullReporter
	mu       sync.Mutex
	warnings int32
}

func (c *countingReporter) Warning(string) {
	atomic.AddInt32(&c.warnings, 1)
}
