package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bournex/gpudecode/internal/config"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/reporter"
)

func writeElementaryInput(t *testing.T, dir, name string, pictures int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	buf := make([]byte, pictures*4096)
	for i := range buf {
		buf[i] = byte(i)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

type countingReporter struct {
	reporter.NullReporter
	runComplete atomic.Int32
	batches     atomic.Int32
}

func (r *countingReporter) RunComplete(reporter.RunSummary) { r.runComplete.Add(1) }
func (r *countingReporter) BatchEmitted(reporter.BatchEmittedEvent) {
	r.batches.Add(1)
}

func TestCoordinatorRunProcessesInputsToCompletion(t *testing.T) {
	dir := t.TempDir()
	a := writeElementaryInput(t, dir, "a.h264", 20)
	b := writeElementaryInput(t, dir, "b.h264", 20)

	cfg := config.NewConfig(dir)
	cfg.BatchSize = 4
	cfg.BatchCount = 2
	cfg.TimeoutMS = 5
	cfg.PipelineWorkers = 2

	rep := &countingReporter{}
	c := New(cfg, rep, driver.NewSimulated(), func(f *frame.Frame) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := c.Run(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.SucceededCount != 2 {
		t.Errorf("SucceededCount = %d, want 2", summary.SucceededCount)
	}
	if summary.TotalFrames == 0 {
		t.Error("expected at least one frame processed")
	}
	if rep.runComplete.Load() != 1 {
		t.Errorf("RunComplete called %d times, want 1", rep.runComplete.Load())
	}
	if rep.batches.Load() == 0 {
		t.Error("expected at least one BatchEmitted event")
	}
}

func TestCoordinatorRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	// A large input keeps the stream alive long enough for cancellation to
	// land before natural EOS.
	a := writeElementaryInput(t, dir, "big.h264", 5000)

	cfg := config.NewConfig(dir)
	cfg.BatchSize = 8
	cfg.BatchCount = 4
	cfg.TimeoutMS = 5
	cfg.PipelineWorkers = 2

	rep := &countingReporter{}
	c := New(cfg, rep, driver.NewSimulated(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		if _, err := c.Run(ctx, []string{a}); err != nil {
			t.Errorf("Run: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestCoordinatorRejectsInvalidConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.BatchSize = 0

	c := New(cfg, reporter.NullReporter{}, driver.NewSimulated(), nil)
	if _, err := c.Run(context.Background(), nil); err == nil {
		t.Error("expected error for invalid config")
	}
}
