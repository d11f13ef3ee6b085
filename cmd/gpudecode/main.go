// Package main provides the CLI entry point for gpudecode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bournex/gpudecode/internal/config"
	"github.com/bournex/gpudecode/internal/coordinator"
	"github.com/bournex/gpudecode/internal/discovery"
	"github.com/bournex/gpudecode/internal/driver"
	"github.com/bournex/gpudecode/internal/logging"
	"github.com/bournex/gpudecode/internal/reporter"
)

const (
	appName    = "gpudecode"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "decode":
		if err := runDecode(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("%s version %s\n", appName, appVersion)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - GPU-accelerated video decode batching pipeline

Usage:
  %s <command> [options]

Commands:
  decode    Decode one or more inputs and batch frames across streams
  version   Print version information
  help      Show this help message

Run '%s decode --help' for decode command options.
`, appName, appName, appName)
}

type decodeArgs struct {
	logDir           string
	verbose          bool
	noLog            bool
	queueLen         int
	batchSize        int
	batchCount       int
	timeoutMS        int
	poolSize         int
	sharedDevicePool bool
	strategy         string
	mapToHost        bool
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Decode one or more media inputs, batching decoded frames across streams.

Usage:
  %s decode [options] <input...>

<input> may name a file or a directory; directories are expanded
non-recursively to their recognised media files.

Options:
  -l, --log-dir <PATH>     Log directory (defaults to ~/.local/state/gpudecode/logs)
  -v, --verbose            Enable verbose output
  --no-log                 Disable log file creation

  -q, --qlen <N>           Per-stream decoder output queue length. Default: %d
  --strategy <S>           Overflow policy when a stream's queue is full:
                             wait, drop-oldest, or drop-newest. Default: wait
  --map-to-host            Copy decoded frames to host memory as they are produced

  --batch-size <N>         Frames per emitted batch. Default: %d
  --batch-count <N>        Number of in-flight batch windows. Default: %d
  --timeout-ms <N>         Force-push period in milliseconds, within [%d,%d]. Default: %d

  --pool-size <N>          Per-stream device and host buffer pool size. Default: %d
  --shared-device-pool     Share one device buffer pool across all streams
`, appName, config.DefaultQueueLen, config.DefaultBatchSize, config.DefaultBatchCount,
			config.MinTimeoutMS, config.MaxTimeoutMS, config.DefaultTimeoutMS,
			config.DefaultDevicePoolSize)
	}

	var da decodeArgs
	fs.StringVar(&da.logDir, "l", "", "Log directory")
	fs.StringVar(&da.logDir, "log-dir", "", "Log directory")
	fs.BoolVar(&da.verbose, "v", false, "Enable verbose output")
	fs.BoolVar(&da.verbose, "verbose", false, "Enable verbose output")
	fs.BoolVar(&da.noLog, "no-log", false, "Disable log file creation")

	fs.IntVar(&da.queueLen, "q", config.DefaultQueueLen, "Per-stream decoder output queue length")
	fs.IntVar(&da.queueLen, "qlen", config.DefaultQueueLen, "Per-stream decoder output queue length")
	fs.StringVar(&da.strategy, "strategy", "wait", "Queue overflow policy")
	fs.BoolVar(&da.mapToHost, "map-to-host", false, "Copy decoded frames to host memory")

	fs.IntVar(&da.batchSize, "batch-size", config.DefaultBatchSize, "Frames per emitted batch")
	fs.IntVar(&da.batchCount, "batch-count", config.DefaultBatchCount, "Number of in-flight batch windows")
	fs.IntVar(&da.timeoutMS, "timeout-ms", config.DefaultTimeoutMS, "Force-push period in milliseconds")

	fs.IntVar(&da.poolSize, "pool-size", config.DefaultDevicePoolSize, "Per-stream device and host buffer pool size")
	fs.BoolVar(&da.sharedDevicePool, "shared-device-pool", false, "Share one device buffer pool across all streams")

	if err := fs.Parse(args); err != nil {
		return err
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one input file or directory is required")
	}

	return executeDecode(da, inputs)
}

func executeDecode(da decodeArgs, inputArgs []string) error {
	files, err := discovery.FindMediaFiles(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to discover media files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no media files found in given inputs")
	}

	logDir := da.logDir
	if logDir == "" {
		logDir = logging.DefaultLogDir()
	}

	logger, err := logging.Setup(logDir, da.verbose, da.noLog, os.Args)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
		logger.Info("Discovered %d input(s)", len(files))
		for i, f := range files {
			logger.Debug("  %d. %s", i+1, f)
		}
	}

	strategy, err := config.ParseStrategy(da.strategy)
	if err != nil {
		return err
	}

	cfg := config.NewConfig(logDir)
	cfg.Verbose = da.verbose
	cfg.NoLog = da.noLog
	cfg.QueueLen = da.queueLen
	cfg.MapToHost = da.mapToHost
	cfg.Strategy = strategy
	cfg.BatchSize = da.batchSize
	cfg.BatchCount = da.batchCount
	cfg.TimeoutMS = da.timeoutMS
	cfg.DevicePoolSize = da.poolSize
	cfg.HostPoolSize = da.poolSize
	cfg.SharedDevicePool = da.sharedDevicePool

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if logger != nil {
		logger.Info("Batch geometry: size=%d count=%d timeout_ms=%d", cfg.BatchSize, cfg.BatchCount, cfg.TimeoutMS)
		logger.Info("Queue strategy: %s, map-to-host=%t", cfg.Strategy, cfg.MapToHost)
	}

	termRep := reporter.NewTerminalReporterVerbose(da.verbose)
	var rep reporter.Reporter = termRep
	if logger != nil {
		logRep := reporter.NewLogReporter(logger.Writer())
		rep = reporter.NewCompositeReporter(termRep, logRep)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	c := coordinator.New(cfg, rep, driver.NewSimulated(), nil)
	summary, err := c.Run(ctx, files)
	if err != nil {
		return err
	}
	rep.OperationComplete(fmt.Sprintf("decoded %d of %d stream(s)", summary.SucceededCount, summary.TotalInputs))
	return nil
}
