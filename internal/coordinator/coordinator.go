// Package coordinator spawns one MediaSource+Decoder+drain per input and
// routes every stream's decoded frames into one shared BatchPipe, reporting
// lifecycle events as it goes. It replaces the teacher's
// internal/processing orchestrator, whose overall control-flow shape
// (emit hardware/run-start events, loop over inputs reporting progress,
// aggregate a summary) it is grounded on.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bournex/gpudecode/internal/batchpipe"
	"github.com/bournex/gpudecode/internal/bufferpool"
	"github.com/bournex/gpudecode/internal/config"
	"github.com/bournex/gpudecode/internal/decoder"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/framepool"
	"github.com/bournex/gpudecode/internal/pipelinestages"
	"github.com/bournex/gpudecode/internal/reporter"
	"github.com/bournex/gpudecode/internal/util"
)

// monitorPeriod is how often the coordinator polls decoder state and pool
// occupancy for the reporter, independent of the batch-pipe timer period.
const monitorPeriod = 250 * time.Millisecond

// ColorConvertFunc stands in for the out-of-scope GPU kernel
// Resize_NV12_to_BGR_planar. A nil value is replaced with a no-op.
type ColorConvertFunc func(*frame.Frame) error

// Coordinator owns one run across a set of inputs.
type Coordinator struct {
	cfg *config.Config
	rep reporter.Reporter
	drv driver.HWDriver

	colorConvert ColorConvertFunc
}

// New builds a Coordinator. drv is typically driver.NewSimulated(); a real
// deployment would inject a hardware-backed driver.HWDriver instead.
func New(cfg *config.Config, rep reporter.Reporter, drv driver.HWDriver, colorConvert ColorConvertFunc) *Coordinator {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	if colorConvert == nil {
		colorConvert = func(*frame.Frame) error { return nil }
	}
	return &Coordinator{cfg: cfg, rep: rep, drv: drv, colorConvert: colorConvert}
}

type streamState struct {
	tid        uint64
	path       string
	devicePool *bufferpool.BufferPool
	hostPool   *bufferpool.BufferPool
	sh         *batchpipe.StreamHandle
}

// Run decodes every input to completion (or until ctx is cancelled) and
// returns an aggregate summary. A per-stream startup failure is reported
// and excluded from the run rather than aborting the whole process, per
// §7's stream-level-abort propagation policy.
func (c *Coordinator) Run(ctx context.Context, inputs []string) (reporter.RunSummary, error) {
	if err := c.cfg.Validate(); err != nil {
		return reporter.RunSummary{}, fmt.Errorf("coordinator: invalid config: %w", err)
	}

	start := time.Now()

	if !c.cfg.NoLog && c.cfg.LogDir != "" {
		util.CheckDiskSpace(c.cfg.LogDir, func(format string, args ...any) {
			c.rep.Warning(fmt.Sprintf(format, args...))
		})
	}

	driver.Init()
	defer driver.Shutdown()

	c.rep.Hardware(reporter.HardwareSummary{Hostname: hostname(), DriverKind: driverKind(c.drv)})
	c.rep.BatchStarted(reporter.BatchStartInfo{
		TotalInputs: len(inputs),
		FileList:    inputs,
		BatchSize:   c.cfg.BatchSize,
		BatchCount:  c.cfg.BatchCount,
	})

	var sharedDevice *bufferpool.BufferPool
	if c.cfg.SharedDevicePool {
		sharedDevice = bufferpool.New(bufferpool.SimAllocator{}, c.cfg.DevicePoolSize)
	}

	pipeline := pipelinestages.Default(c.cfg.PipelineWorkers, c.cfg.BatchSize*2, c.rep, c.colorConvert)
	pipeline.Start(ctx)

	var (
		batchIndex  atomic.Uint64
		totalFrames atomic.Uint64
		countsMu    sync.Mutex
		frameCounts = map[uint64]*atomic.Uint64{}
		pathByTID   = map[uint64]string{}
	)

	onBatch := func(items []*framepool.Handle) {
		idx := batchIndex.Add(1) - 1
		producers := map[uint64]struct{}{}
		for _, h := range items {
			tid := h.Frame().TID
			producers[tid] = struct{}{}

			countsMu.Lock()
			counter := frameCounts[tid]
			path := pathByTID[tid]
			countsMu.Unlock()
			if counter != nil {
				n := counter.Add(1)
				c.rep.StreamProgress(reporter.StreamProgressContext{TID: tid, InputFile: path, FramesSoFar: n})
			}
		}
		totalFrames.Add(uint64(len(items)))
		c.rep.BatchEmitted(reporter.BatchEmittedEvent{
			BatchIndex: idx,
			Count:      len(items),
			Forced:     len(items) < c.cfg.BatchSize,
			Producers:  len(producers),
		})
		pipeline.Submit(items)
	}

	framePoolCap := c.cfg.BatchSize * c.cfg.BatchCount * 4
	bp := batchpipe.New(framePoolCap, batchpipe.Config{
		BatchSize:  c.cfg.BatchSize,
		BatchCount: c.cfg.BatchCount,
		TimeoutMS:  c.cfg.TimeoutMS,
	}, onBatch)

	var streams []*streamState
	for i, path := range inputs {
		tid := uint64(i + 1)
		devicePool := sharedDevice
		if devicePool == nil {
			devicePool = bufferpool.New(bufferpool.SimAllocator{}, c.cfg.DevicePoolSize)
		}
		hostPool := bufferpool.New(bufferpool.HostAllocator{}, c.cfg.HostPoolSize)

		kind := "container"
		if util.IsElementaryStream(path) {
			kind = "elementary"
		}
		c.rep.Initialization(reporter.InitializationSummary{TID: tid, InputFile: path, Kind: kind})

		decCfg := decoder.Config{
			QueueLen:       c.cfg.QueueLen,
			MapToHost:      c.cfg.MapToHost,
			DevicePoolSize: c.cfg.DevicePoolSize,
			HostPoolSize:   c.cfg.HostPoolSize,
			Strategy:       translateStrategy(c.cfg.Strategy),
		}

		sh, err := bp.Startup(tid, path, batchpipe.StartupConfig{
			Driver:     c.drv,
			Decoder:    decCfg,
			DevicePool: devicePool,
			HostPool:   hostPool,
		})
		if err != nil {
			c.rep.Error(reporter.ReporterError{
				Title:   "stream failed to start",
				Message: err.Error(),
				Context: path,
			})
			if devicePool != sharedDevice {
				devicePool.Close()
			}
			hostPool.Close()
			continue
		}

		countsMu.Lock()
		frameCounts[tid] = &atomic.Uint64{}
		pathByTID[tid] = path
		countsMu.Unlock()

		streams = append(streams, &streamState{
			tid:        tid,
			path:       path,
			devicePool: devicePool,
			hostPool:   hostPool,
			sh:         sh,
		})
	}

	doneCh := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, s := range streams {
			wg.Add(1)
			go func(s *streamState) {
				defer wg.Done()
				s.sh.Wait()
			}(s)
		}
		wg.Wait()
		close(doneCh)
	}()

	monitorDone := make(chan struct{})
	go c.monitor(streams, doneCh, monitorDone)

	select {
	case <-doneCh:
	case <-ctx.Done():
		for _, s := range streams {
			_ = s.sh.Close()
		}
		<-doneCh
	}
	<-monitorDone

	// Join order mirrors the LIFO dependency chain (workers, timer, drain,
	// media reader, decoder): the pipeline's own workers are the outermost
	// consumer and are joined first, so a frame already in flight downstream
	// finishes its stage instead of being released mid-pipeline. bp.Close
	// then stops the force-push timer and joins every drain goroutine; the
	// loop below closes each StreamHandle, which closes its decoder and joins
	// its media reader.
	pipeline.Stop()
	bp.Close()

	for _, s := range streams {
		_ = s.sh.Close()
		if s.devicePool != sharedDevice {
			s.devicePool.Close()
		}
		s.hostPool.Close()
	}
	if sharedDevice != nil {
		sharedDevice.Close()
	}

	summary := reporter.RunSummary{
		TotalInputs:    len(inputs),
		SucceededCount: len(streams),
		TotalFrames:    totalFrames.Load(),
		TotalBatches:   batchIndex.Load(),
		Duration:       time.Since(start),
	}
	for _, s := range streams {
		countsMu.Lock()
		n := frameCounts[s.tid].Load()
		countsMu.Unlock()
		summary.PerStream = append(summary.PerStream, reporter.StreamResult{
			InputFile: s.path,
			TID:       s.tid,
			Frames:    n,
		})
	}
	c.rep.RunComplete(summary)
	return summary, nil
}

// monitor periodically reports pool occupancy for every live stream until
// doneCh closes, then signals monitorDone.
func (c *Coordinator) monitor(streams []*streamState, doneCh <-chan struct{}, monitorDone chan<- struct{}) {
	defer close(monitorDone)
	ticker := time.NewTicker(monitorPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-doneCh:
			return
		case <-ticker.C:
			for _, s := range streams {
				c.rep.DecoderState(reporter.DecoderStateEvent{
					TID:        s.tid,
					State:      stateName(s.sh.State()),
					QueueDepth: s.sh.QueueLen(),
				})
				ds := s.devicePool.Stats()
				c.rep.PoolStats(reporter.PoolStatsSummary{
					Owner: fmt.Sprintf("tid=%d device", s.tid), Kind: ds.Kind,
					Free: ds.Free, Busy: ds.Busy, PoolSize: ds.PoolSize,
				})
				hs := s.hostPool.Stats()
				c.rep.PoolStats(reporter.PoolStatsSummary{
					Owner: fmt.Sprintf("tid=%d host", s.tid), Kind: hs.Kind,
					Free: hs.Free, Busy: hs.Busy, PoolSize: hs.PoolSize,
				})
			}
		}
	}
}

func stateName(s decoder.State) string {
	switch s {
	case decoder.StateInit:
		return "init"
	case decoder.StateSequenceConfigured:
		return "sequence-configured"
	case decoder.StateDecoding:
		return "decoding"
	case decoder.StateDraining:
		return "draining"
	case decoder.StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func translateStrategy(s config.QueueStrategy) decoder.QueueStrategy {
	switch s {
	case config.StrategyDropOldest:
		return decoder.StrategyDropOldest
	case config.StrategyDropNewest:
		return decoder.StrategyDropNewest
	default:
		return decoder.StrategyWait
	}
}

func driverKind(drv driver.HWDriver) string {
	if _, ok := drv.(*driver.Simulated); ok {
		return "simulated"
	}
	return "hardware"
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
