package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogReporter writes decode/batch lifecycle events to a log file.
type LogReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Hardware(summary HardwareSummary) {
	r.log("INFO", "=== HARDWARE === host=%s driver=%s", summary.Hostname, summary.DriverKind)
}

func (r *LogReporter) Initialization(summary InitializationSummary) {
	r.log("INFO", "stream tid=%d opened %s (%s)", summary.TID, summary.InputFile, summary.Kind)
}

func (r *LogReporter) StageProgress(update StageProgress) {
	r.log("INFO", "[%s] %s", update.Stage, update.Message)
}

func (r *LogReporter) PoolStats(s PoolStatsSummary) {
	r.log("DEBUG", "pool %s (%s): free=%d busy=%d cap=%d", s.Owner, s.Kind, s.Free, s.Busy, s.PoolSize)
}

func (r *LogReporter) DecoderState(s DecoderStateEvent) {
	r.log("INFO", "tid=%d state=%s resolution=%dx%d queue=%d", s.TID, s.State, s.Width, s.Height, s.QueueDepth)
}

func (r *LogReporter) BatchEmitted(s BatchEmittedEvent) {
	r.log("DEBUG", "batch %d emitted: count=%d producers=%d forced=%t", s.BatchIndex, s.Count, s.Producers, s.Forced)
}

func (r *LogReporter) BatchStarted(info BatchStartInfo) {
	r.log("INFO", "=== RUN STARTED === inputs=%d batch_size=%d batch_count=%d", info.TotalInputs, info.BatchSize, info.BatchCount)
	for i, name := range info.FileList {
		r.log("INFO", "  %d. %s", i+1, name)
	}
}

func (r *LogReporter) StreamProgress(ctx StreamProgressContext) {
	r.log("DEBUG", "tid=%d %s: %d frames so far", ctx.TID, ctx.InputFile, ctx.FramesSoFar)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}

func (r *LogReporter) RunComplete(summary RunSummary) {
	r.log("INFO", "=== SUMMARY === %d/%d streams, %d frames, %d batches, %s",
		summary.SucceededCount, summary.TotalInputs, summary.TotalFrames, summary.TotalBatches, summary.Duration)
	for _, sr := range summary.PerStream {
		r.log("INFO", "  - tid=%d %s: %d frames", sr.TID, sr.InputFile, sr.Frames)
	}
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
