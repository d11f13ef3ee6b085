// Package gpudecode provides a Go library for GPU-accelerated video decode
// batching.
//
// This file re-exports the internal Reporter interface and associated types
// to allow callers to receive all decode lifecycle events directly.

package gpudecode

import (
	"io"

	"github.com/bournex/gpudecode/internal/reporter"
)

// Reporter defines the interface for progress reporting during a decode
// run. Implement this interface to receive detailed events about batch
// pipeline progress.
type Reporter = reporter.Reporter

// NullReporter is a no-op reporter that discards all updates.
type NullReporter = reporter.NullReporter

// CompositeReporter fans events out to multiple Reporters.
type CompositeReporter = reporter.CompositeReporter

// TerminalReporter prints human-readable progress to the terminal.
type TerminalReporter = reporter.TerminalReporter

// LogReporter writes decode lifecycle events to a log file.
type LogReporter = reporter.LogReporter

// HardwareSummary describes the process-wide driver context at startup.
type HardwareSummary = reporter.HardwareSummary

// InitializationSummary describes one stream as its decoder comes up.
type InitializationSummary = reporter.InitializationSummary

// StageProgress is a generic, free-text stage update.
type StageProgress = reporter.StageProgress

// PoolStatsSummary is a point-in-time snapshot of a buffer pool.
type PoolStatsSummary = reporter.PoolStatsSummary

// DecoderStateEvent reports a per-stream state machine transition.
type DecoderStateEvent = reporter.DecoderStateEvent

// BatchEmittedEvent reports one CircularBatch emission.
type BatchEmittedEvent = reporter.BatchEmittedEvent

// BatchStartInfo describes a run about to begin.
type BatchStartInfo = reporter.BatchStartInfo

// StreamProgressContext reports a per-stream frame-count tick.
type StreamProgressContext = reporter.StreamProgressContext

// ReporterError carries a structured error for display.
type ReporterError = reporter.ReporterError

// RunSummary is emitted once a run completes.
type RunSummary = reporter.RunSummary

// StreamResult is one stream's contribution to a RunSummary.
type StreamResult = reporter.StreamResult

// NewCompositeReporter combines one or more reporters into a single one.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return reporter.NewCompositeReporter(reporters...)
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return reporter.NewTerminalReporter()
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return reporter.NewTerminalReporterVerbose(verbose)
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return reporter.NewLogReporter(w)
}
