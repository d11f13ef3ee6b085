// Package pipelinestages implements the downstream consumer of emitted
// batches: a chain of stages, each backed by a worker pool, connected by
// bounded queues of frame handles. It is grounded on the teacher's
// internal/encode worker-pool pattern (channel-fed goroutines supervised by
// errgroup) rather than its SVT-AV1-specific command building.
package pipelinestages

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bournex/gpudecode/internal/frame"
	"github.com/bournex/gpudecode/internal/framepool"
	"github.com/bournex/gpudecode/internal/reporter"
)

// StageFunc performs one stage's work on a frame in place. Returning an
// error drops the frame at this stage (it is released, not forwarded); a
// stage failure is not fatal to the pipeline, matching the rest of this
// system's per-stream error policy.
type StageFunc func(f *frame.Frame) error

// progressEvery gates how often a stage emits a StageProgress event:
// StageProgress is not verbose-gated by the terminal reporter, so per-frame
// emission would flood the console under sustained throughput.
const progressEvery = 32

// Stage names the ith position for reporting purposes.
type Stage struct {
	name string
	fn   StageFunc
}

// Pipeline runs stages in order: stage i's workers read queues[i] and write
// queues[i+1]; the final stage releases its handles.
type Pipeline struct {
	stages   []Stage
	workers  int
	rep      reporter.Reporter
	queues   []chan *framepool.Handle
	wg       sync.WaitGroup
	counters []atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// New builds a pipeline with workersPerStage worker goroutines per stage and
// the given queue depth between stages. rep may be reporter.NullReporter{}.
func New(workersPerStage, queueDepth int, rep reporter.Reporter, stages ...Stage) *Pipeline {
	if workersPerStage < 1 {
		workersPerStage = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	p := &Pipeline{
		stages:   stages,
		workers:  workersPerStage,
		rep:      rep,
		counters: make([]atomic.Uint64, len(stages)),
	}
	p.queues = make([]chan *framepool.Handle, len(stages)+1)
	for i := range p.queues {
		p.queues[i] = make(chan *framepool.Handle, queueDepth)
	}
	return p
}

// NewStage pairs a stage function with a name for reporting.
func NewStage(name string, fn StageFunc) Stage {
	return Stage{name: name, fn: fn}
}

// Default builds the two-stage pipeline shipped by this repository: a
// colour-convert stage that calls the injected GPU kernel stand-in, and a
// sink stage that releases the batch.
func Default(workersPerStage, queueDepth int, rep reporter.Reporter, colorConvert func(f *frame.Frame) error) *Pipeline {
	return New(workersPerStage, queueDepth, rep,
		NewStage("colorconvert", colorConvert),
		NewStage("sink", func(*frame.Frame) error { return nil }),
	)
}

// Start spawns every stage's worker goroutines. ctx cancellation causes
// in-flight and queued handles to be released rather than processed further.
func (p *Pipeline) Start(ctx context.Context) {
	for i := range p.stages {
		p.wg.Add(1)
		go p.runStage(ctx, i)
	}
}

func (p *Pipeline) runStage(ctx context.Context, i int) {
	defer p.wg.Done()
	in := p.queues[i]
	out := p.queues[i+1]
	last := i == len(p.stages)-1
	stage := p.stages[i]

	var eg errgroup.Group
	for w := 0; w < p.workers; w++ {
		eg.Go(func() error { return p.worker(ctx, i, stage, in, out, last) })
	}
	if err := eg.Wait(); err != nil {
		p.rep.Warning(fmt.Sprintf("pipeline stage %q: %v", stage.name, err))
	}
	close(out)
}

func (p *Pipeline) worker(ctx context.Context, stageIdx int, stage Stage, in <-chan *framepool.Handle, out chan<- *framepool.Handle, last bool) error {
	for h := range in {
		select {
		case <-ctx.Done():
			h.Release()
			continue
		default:
		}

		if err := stage.fn(h.Frame()); err != nil {
			p.rep.Warning(fmt.Sprintf("pipeline stage %q dropped frame: %v", stage.name, err))
			h.Release()
			continue
		}

		if n := p.counters[stageIdx].Add(1); n%progressEvery == 0 {
			p.rep.StageProgress(reporter.StageProgress{
				Stage:   stage.name,
				Message: fmt.Sprintf("processed %d frames", n),
			})
		}

		if last {
			h.Release()
			continue
		}
		out <- h
	}
	return nil
}

// Submit enqueues a closed batch's handles into the first stage. Handles are
// released immediately, without entering the pipeline, if Stop has already
// been called.
func (p *Pipeline) Submit(batch []*framepool.Handle) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		for _, h := range batch {
			h.Release()
		}
		return
	}
	for _, h := range batch {
		p.queues[0] <- h
	}
}

// Stop closes the pipeline's entry queue and waits for every stage to drain
// and exit, in order.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queues[0])
	}
	p.mu.Unlock()
	p.wg.Wait()
}
