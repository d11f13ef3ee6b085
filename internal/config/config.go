// Package config provides configuration types and defaults for gpudecode.
package config

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// QueueStrategy mirrors decoder.QueueStrategy without importing it, so
// config stays a leaf package; the CLI and library entry point translate
// between the two.
type QueueStrategy int

const (
	StrategyWait QueueStrategy = iota
	StrategyDropOldest
	StrategyDropNewest
)

func (s QueueStrategy) String() string {
	switch s {
	case StrategyDropOldest:
		return "drop-oldest"
	case StrategyDropNewest:
		return "drop-newest"
	default:
		return "wait"
	}
}

// ParseStrategy parses the --strategy flag value.
func ParseStrategy(s string) (QueueStrategy, error) {
	switch s {
	case "", "wait":
		return StrategyWait, nil
	case "drop-oldest":
		return StrategyDropOldest, nil
	case "drop-newest":
		return StrategyDropNewest, nil
	default:
		return StrategyWait, fmt.Errorf("unknown strategy %q (want wait, drop-oldest, or drop-newest)", s)
	}
}

// Default constants.
const (
	DefaultQueueLen       = 4
	DefaultBatchSize      = 8
	DefaultBatchCount     = 4
	DefaultTimeoutMS      = 40
	DefaultHostPoolSize   = 16
	DefaultDevicePoolSize = 16
	DefaultMapToHost      = false
	DefaultSharedDevicePool = false
	DefaultPipelineStages = 2

	// MinTimeoutMS and MaxTimeoutMS bound the batch-pipe timer period, per
	// §4.6: "bounded to [1,50]".
	MinTimeoutMS = 1
	MaxTimeoutMS = 50
)

// Config holds all configuration for one gpudecode run.
type Config struct {
	// Input/output
	LogDir  string
	Verbose bool
	NoLog   bool

	// Decoder / queue
	QueueLen  int
	MapToHost bool
	Strategy  QueueStrategy

	// Buffer pools
	HostPoolSize      int
	DevicePoolSize    int
	SharedDevicePool  bool

	// Batch pipe
	BatchSize  int
	BatchCount int
	TimeoutMS  int

	// Downstream pipeline
	PipelineWorkers int
	PipelineStages  int
}

// NewConfig creates a new Config with default values. PipelineWorkers is
// auto-sized from the process's CPU affinity mask.
func NewConfig(logDir string) *Config {
	return &Config{
		LogDir:           logDir,
		QueueLen:         DefaultQueueLen,
		MapToHost:        DefaultMapToHost,
		Strategy:         StrategyWait,
		HostPoolSize:     DefaultHostPoolSize,
		DevicePoolSize:   DefaultDevicePoolSize,
		SharedDevicePool: DefaultSharedDevicePool,
		BatchSize:        DefaultBatchSize,
		BatchCount:       DefaultBatchCount,
		TimeoutMS:        DefaultTimeoutMS,
		PipelineWorkers:  AutoPipelineWorkers(),
		PipelineStages:   DefaultPipelineStages,
	}
}

// AutoPipelineWorkers sizes the downstream pipeline's worker count from the
// CPU affinity mask the OS scheduler actually honours for this process
// (narrower than runtime.NumCPU() under a cgroup/container CPU quota, the
// way the teacher's calculateThreadsPerWorker sized SVT-AV1 workers from
// physical core counts). Falls back to runtime.NumCPU() when the syscall is
// unavailable (non-Linux).
func AutoPipelineWorkers() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Validate checks the configuration for errors and returns the first value
// out of range. It does not modify cfg: pool sizes are only checked to be at
// least 1, and bufferpool.New clamps them when the pools are built.
func (c *Config) Validate() error {
	if c.QueueLen < 1 {
		return fmt.Errorf("queue length must be at least 1, got %d", c.QueueLen)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchCount < 1 {
		return fmt.Errorf("batch count must be at least 1, got %d", c.BatchCount)
	}
	if c.TimeoutMS < MinTimeoutMS || c.TimeoutMS > MaxTimeoutMS {
		return fmt.Errorf("timeout-ms must be between %d and %d, got %d", MinTimeoutMS, MaxTimeoutMS, c.TimeoutMS)
	}
	if c.HostPoolSize < 1 {
		return fmt.Errorf("host pool size must be at least 1, got %d", c.HostPoolSize)
	}
	if c.DevicePoolSize < 1 {
		return fmt.Errorf("device pool size must be at least 1, got %d", c.DevicePoolSize)
	}
	if c.PipelineWorkers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", c.PipelineWorkers)
	}
	if c.PipelineStages < 1 {
		return fmt.Errorf("pipeline stages must be at least 1, got %d", c.PipelineStages)
	}
	return nil
}
