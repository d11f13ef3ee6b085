// Package reporter defines the progress-reporting interface shared by the
// terminal and log reporters, and the event payloads the coordinator and
// batch pipe emit through it.
package reporter

import "time"

// Reporter receives lifecycle events from the coordinator, decoders, and
// batch pipe. Implementations must be safe for concurrent use: decoders run
// on independent goroutines and may call into a Reporter at the same time.
type Reporter interface {
	Hardware(HardwareSummary)
	Initialization(InitializationSummary)
	StageProgress(StageProgress)
	PoolStats(PoolStatsSummary)
	DecoderState(DecoderStateEvent)
	BatchEmitted(BatchEmittedEvent)
	BatchStarted(BatchStartInfo)
	StreamProgress(StreamProgressContext)
	Warning(string)
	Error(ReporterError)
	OperationComplete(string)
	RunComplete(RunSummary)
	Verbose(string)
}

// HardwareSummary describes the process-wide driver context at startup.
type HardwareSummary struct {
	Hostname   string
	DriverKind string // "simulated" or the name of the real hardware backend
}

// InitializationSummary describes one stream as its Decoder comes up.
type InitializationSummary struct {
	TID       uint64
	InputFile string
	Kind      string // "elementary" or "container"
}

// StageProgress is a generic, free-text stage update, used for events that
// don't warrant a dedicated struct (pool warm-up, pipeline stage startup).
type StageProgress struct {
	Stage   string
	Message string
}

// PoolStatsSummary is a point-in-time snapshot of a BufferPool, surfaced
// periodically so operators can see reuse behaviour at steady state.
type PoolStatsSummary struct {
	Owner    string // e.g. "tid=3 device" or "tid=3 host"
	Kind     string
	Free     int
	Busy     int
	PoolSize int
}

// DecoderStateEvent reports a per-stream state machine transition.
type DecoderStateEvent struct {
	TID        uint64
	State      string
	Width      uint32
	Height     uint32
	QueueDepth int
}

// BatchEmittedEvent reports one CircularBatch emission.
type BatchEmittedEvent struct {
	BatchIndex uint64
	Count      int
	Forced     bool // true when emitted by a timer ForcePush, not a full ring
	Producers  int  // number of distinct tids represented in the batch
}

// BatchStartInfo describes a coordinator run about to begin.
type BatchStartInfo struct {
	TotalInputs int
	FileList    []string
	BatchSize   int
	BatchCount  int
}

// StreamProgressContext reports a per-stream frame-count tick.
type StreamProgressContext struct {
	TID         uint64
	InputFile   string
	FramesSoFar uint64
}

// ReporterError carries a structured error for display.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// RunSummary is emitted once, after every stream has drained and the batch
// pipe has been closed.
type RunSummary struct {
	TotalInputs    int
	SucceededCount int
	TotalFrames    uint64
	TotalBatches   uint64
	Duration       time.Duration
	PerStream      []StreamResult
}

// StreamResult is one stream's contribution to the RunSummary.
type StreamResult struct {
	InputFile string
	TID       uint64
	Frames    uint64
}

// NullReporter discards every event. It is the default when no Reporter is
// supplied to the library entry point.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) Initialization(InitializationSummary) {}
func (NullReporter) StageProgress(StageProgress)          {}
func (NullReporter) PoolStats(PoolStatsSummary)           {}
func (NullReporter) DecoderState(DecoderStateEvent)       {}
func (NullReporter) BatchEmitted(BatchEmittedEvent)       {}
func (NullReporter) BatchStarted(BatchStartInfo)          {}
func (NullReporter) StreamProgress(StreamProgressContext) {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) OperationComplete(string)             {}
func (NullReporter) RunComplete(RunSummary)               {}
func (NullReporter) Verbose(string)                       {}

// CompositeReporter fans every event out to each of its members in order,
// mirroring the teacher's terminal+log dual-reporter composition.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter combines one or more reporters into a single one.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) Hardware(s HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(s)
	}
}

func (c *CompositeReporter) Initialization(s InitializationSummary) {
	for _, r := range c.reporters {
		r.Initialization(s)
	}
}

func (c *CompositeReporter) StageProgress(s StageProgress) {
	for _, r := range c.reporters {
		r.StageProgress(s)
	}
}

func (c *CompositeReporter) PoolStats(s PoolStatsSummary) {
	for _, r := range c.reporters {
		r.PoolStats(s)
	}
}

func (c *CompositeReporter) DecoderState(s DecoderStateEvent) {
	for _, r := range c.reporters {
		r.DecoderState(s)
	}
}

func (c *CompositeReporter) BatchEmitted(s BatchEmittedEvent) {
	for _, r := range c.reporters {
		r.BatchEmitted(s)
	}
}

func (c *CompositeReporter) BatchStarted(s BatchStartInfo) {
	for _, r := range c.reporters {
		r.BatchStarted(s)
	}
}

func (c *CompositeReporter) StreamProgress(s StreamProgressContext) {
	for _, r := range c.reporters {
		r.StreamProgress(s)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(e ReporterError) {
	for _, r := range c.reporters {
		r.Error(e)
	}
}

func (c *CompositeReporter) OperationComplete(message string) {
	for _, r := range c.reporters {
		r.OperationComplete(message)
	}
}

func (c *CompositeReporter) RunComplete(s RunSummary) {
	for _, r := range c.reporters {
		r.RunComplete(s)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
