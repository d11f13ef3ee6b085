package batchpipe

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/decoder"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/framepool"
)

func writeElementaryFile(t *testing.T, pictures int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.h264")
	if err := os.WriteFile(path, make([]byte, pictures*4096), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBatchPipeEmitsFullBatches(t *testing.T) {
	path := writeElementaryFile(t, 10)

	var mu sync.Mutex
	var batches [][]*framepool.Handle

	bp := New(32, Config{BatchSize: 4, BatchCount: 2, TimeoutMS: 40}, func(items []*framepool.Handle) {
		mu.Lock()
		defer mu.Unlock()
		cp := make([]*framepool.Handle, len(items))
		copy(cp, items)
		batches = append(batches, cp)
		for _, h := range cp {
			h.Release()
		}
	})

	devicePool := bufferpool.New(bufferpool.SimAllocator{}, 32)
	hostPool := bufferpool.New(bufferpool.HostAllocator{}, 32)

	sh, err := bp.Startup(1, path, StartupConfig{
		Driver:     driver.NewSimulated(),
		Decoder:    decoder.Config{QueueLen: 4, DevicePoolSize: 32, HostPoolSize: 32},
		DevicePool: devicePool,
		HostPool:   hostPool,
	})
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}

	sh.Wait()
	if err := sh.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	bp.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(batches) == 0 {
		t.Fatal("no batches emitted")
	}
	for i, b := range batches {
		if i < len(batches)-1 && len(b) != 4 {
			t.Errorf("batch %d has %d items, want 4 (full)", i, len(b))
		}
	}
}

func TestBatchPipeForcePushOnLowRate(t *testing.T) {
	path := writeElementaryFile(t, 1)

	emitted := make(chan int, 8)
	bp := New(32, Config{BatchSize: 16, BatchCount: 2, TimeoutMS: 5}, func(items []*framepool.Handle) {
		emitted <- len(items)
		for _, h := range items {
			h.Release()
		}
	})
	defer bp.Close()

	devicePool := bufferpool.New(bufferpool.SimAllocator{}, 32)
	hostPool := bufferpool.New(bufferpool.HostAllocator{}, 32)

	sh, err := bp.Startup(1, path, StartupConfig{
		Driver:     driver.NewSimulated(),
		Decoder:    decoder.Config{QueueLen: 4, DevicePoolSize: 32, HostPoolSize: 32},
		DevicePool: devicePool,
		HostPool:   hostPool,
	})
	if err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer sh.Close()

	select {
	case n := <-emitted:
		if n == 0 {
			t.Error("timer force-pushed an empty batch")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a force-pushed batch")
	}
}
