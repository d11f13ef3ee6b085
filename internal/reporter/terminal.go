package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal, with a live
// progress bar over total frames processed across all streams.
type TerminalReporter struct {
	mu       sync.Mutex
	progress *progressbar.ProgressBar
	verbose  bool
	cyan     *color.Color
	green    *color.Color
	yellow   *color.Color
	red      *color.Color
	magenta  *color.Color
	bold     *color.Color
	dim      *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

const labelWidth = 18

func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel("Hostname:", summary.Hostname)
	r.printLabel("Driver:", summary.DriverKind)
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	r.printLabel(fmt.Sprintf("Stream %d:", summary.TID), fmt.Sprintf("%s (%s)", summary.InputFile, summary.Kind))
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	fmt.Printf("  %s [%s] %s\n", r.magenta.Sprint("›"), update.Stage, update.Message)
}

func (r *TerminalReporter) PoolStats(s PoolStatsSummary) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s pool %s (%s): free=%d busy=%d cap=%d\n",
		r.dim.Sprint("›"), s.Owner, s.Kind, s.Free, s.Busy, s.PoolSize)
}

func (r *TerminalReporter) DecoderState(s DecoderStateEvent) {
	fmt.Printf("  %s tid=%d -> %s (%dx%d, queue=%d)\n",
		r.magenta.Sprint("›"), s.TID, s.State, s.Width, s.Height, s.QueueDepth)
}

func (r *TerminalReporter) BatchEmitted(s BatchEmittedEvent) {
	if !r.verbose {
		return
	}
	tag := "full"
	if s.Forced {
		tag = "forced"
	}
	fmt.Printf("  %s batch %d: %d frames from %d streams (%s)\n",
		r.dim.Sprint("›"), s.BatchIndex, s.Count, s.Producers, tag)
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	fmt.Println()
	_, _ = r.cyan.Println("RUN")
	fmt.Printf("  Decoding %d input(s), batch=%d x %d\n", info.TotalInputs, info.BatchSize, info.BatchCount)
	for i, name := range info.FileList {
		fmt.Printf("  %d. %s\n", i+1, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = progressbar.NewOptions64(
		-1,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Frames [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) StreamProgress(ctx StreamProgressContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress == nil {
		return
	}
	r.progress.Describe(fmt.Sprintf("tid=%d %s: %d frames", ctx.TID, ctx.InputFile, ctx.FramesSoFar))
	_ = r.progress.Add(1)
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	fmt.Println()
	fmt.Printf("%s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) RunComplete(summary RunSummary) {
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.mu.Unlock()

	fmt.Println()
	_, _ = r.cyan.Println("SUMMARY")
	fmt.Printf("  %s\n", r.bold.Sprintf("%d of %d streams completed", summary.SucceededCount, summary.TotalInputs))
	fmt.Printf("  Total frames: %d, total batches: %d\n", summary.TotalFrames, summary.TotalBatches)
	fmt.Printf("  Time: %s\n", summary.Duration.Round(summary.Duration))
	for _, sr := range summary.PerStream {
		fmt.Printf("  - tid=%d %s: %d frames\n", sr.TID, sr.InputFile, sr.Frames)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
