// Package gpudecode provides a Go library for GPU-accelerated video decode
// batching.
//
// gpudecode drives one or more hardware decode streams in parallel and
// groups their decoded frames into fixed-size cross-stream batches for a
// downstream processing pipeline.
//
// Basic usage:
//
//	coord, err := gpudecode.New(
//	    gpudecode.WithBatchSize(16),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := coord.Run(ctx, []string{"input.mp4", "input2.h264"}, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Decoded %d frames across %d streams\n", summary.TotalFrames, summary.SucceededCount)
package gpudecode

import (
	"context"

	"github.com/bournex/gpudecode/internal/config"
	"github.com/bournex/gpudecode/internal/coordinator"
	"github.com/bournex/gpudecode/internal/discovery"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/reporter"
)

// Runner is the main entry point for decode batching.
type Runner struct {
	config *config.Config
	driver driver.HWDriver
}

type settings struct {
	cfg *config.Config
	drv driver.HWDriver
}

// Option configures the Runner.
type Option func(*settings)

// New creates a new Runner with the given options. The default driver is
// driver.NewSimulated(); inject a real hardware driver with WithDriver.
func New(opts ...Option) (*Runner, error) {
	s := &settings{cfg: config.NewConfig(""), drv: driver.NewSimulated()}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	return &Runner{config: s.cfg, driver: s.drv}, nil
}

// WithQueueLen sets each stream's decoder output queue length.
func WithQueueLen(n int) Option {
	return func(s *settings) { s.cfg.QueueLen = n }
}

// WithBatchSize sets the number of frames per emitted batch.
func WithBatchSize(n int) Option {
	return func(s *settings) { s.cfg.BatchSize = n }
}

// WithBatchCount sets the number of in-flight batch windows.
func WithBatchCount(n int) Option {
	return func(s *settings) { s.cfg.BatchCount = n }
}

// WithTimeoutMS sets the force-push timer period in milliseconds. New
// returns an error unless it lies within [config.MinTimeoutMS,
// config.MaxTimeoutMS].
func WithTimeoutMS(ms int) Option {
	return func(s *settings) { s.cfg.TimeoutMS = ms }
}

// WithStrategy sets the overflow policy applied when a decoder's output
// queue is full.
func WithStrategy(strategy config.QueueStrategy) Option {
	return func(s *settings) { s.cfg.Strategy = strategy }
}

// WithMapToHost enables copying every decoded frame to host memory as it is
// produced, rather than leaving it device-resident.
func WithMapToHost(enabled bool) Option {
	return func(s *settings) { s.cfg.MapToHost = enabled }
}

// WithPoolSize sets each stream's device and host buffer pool size.
func WithPoolSize(n int) Option {
	return func(s *settings) {
		s.cfg.DevicePoolSize = n
		s.cfg.HostPoolSize = n
	}
}

// WithSharedDevicePool causes all streams to allocate from a single shared
// device buffer pool instead of one pool per stream.
func WithSharedDevicePool(enabled bool) Option {
	return func(s *settings) { s.cfg.SharedDevicePool = enabled }
}

// WithPipelineWorkers sets the number of worker goroutines per downstream
// pipeline stage.
func WithPipelineWorkers(n int) Option {
	return func(s *settings) { s.cfg.PipelineWorkers = n }
}

// WithDriver overrides the hardware decode driver. The default is
// driver.NewSimulated().
func WithDriver(drv driver.HWDriver) Option {
	return func(s *settings) { s.drv = drv }
}

// Run decodes every input to completion (or until ctx is cancelled),
// reporting progress through rep (NullReporter is used if rep is nil), and
// returns an aggregate summary. colorConvert stands in for the downstream
// GPU color-conversion kernel; pass nil to use a no-op.
func (r *Runner) Run(ctx context.Context, inputs []string, rep reporter.Reporter, colorConvert func(*frame.Frame) error) (reporter.RunSummary, error) {
	c := coordinator.New(r.config, rep, r.driver, colorConvert)
	return c.Run(ctx, inputs)
}

// FindMediaFiles expands a list of file or directory arguments into a list
// of media files: file arguments are kept in order, and each directory
// contributes its recognised media files sorted by name.
func FindMediaFiles(args []string) ([]string, error) {
	return discovery.FindMediaFiles(args)
}
