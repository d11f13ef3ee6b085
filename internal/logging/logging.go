// Package logging provides file logging for the gpudecode CLI.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// logRetention bounds how long a run's log file is kept around. Setup prunes
// anything older on every invocation, since this CLI has no separate
// logrotate-style maintenance command.
const logRetention = 14 * 24 * time.Hour

// DefaultLogDir returns the default log directory following XDG Base
// Directory Spec: $XDG_STATE_HOME/gpudecode/logs, defaulting to
// ~/.local/state/gpudecode/logs.
func DefaultLogDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "gpudecode", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "gpudecode", "logs")
	}
	return filepath.Join(home, ".local", "state", "gpudecode", "logs")
}

type level int

const (
	levelInfo level = iota
	levelDebug
)

// Logger wraps the standard logger with level filtering and file output.
type Logger struct {
	level    level
	logger   *log.Logger
	file     *os.File
	filePath string
}

// Setup creates a new logger that writes to a timestamped log file. Returns
// nil if logging is disabled (noLog=true). cmdArgs should be os.Args to log
// the command that was run.
func Setup(logDir string, verbose, noLog bool, cmdArgs []string) (*Logger, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}
	pruneOldLogs(logDir)

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("gpudecode_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	lvl := levelInfo
	if verbose {
		lvl = levelDebug
	}

	l := &Logger{
		level:    lvl,
		logger:   log.New(file, "", 0),
		file:     file,
		filePath: filePath,
	}

	l.Info("invoked as: %s", strings.Join(cmdArgs, " "))
	l.Info("pid %d, log file %s", os.Getpid(), filePath)
	if verbose {
		l.Debug("debug logging enabled")
	}

	return l, nil
}

// pruneOldLogs removes this command's own run logs older than logRetention.
// Failures are ignored: a full disk or a permissions issue here should never
// block a decode run from starting.
func pruneOldLogs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-logRetention)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "gpudecode_run_") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("%s [INFO] "+format, append([]any{timestamp}, args...)...)
}

// Debug logs a debug-level message (only if verbose mode is enabled).
func (l *Logger) Debug(format string, args ...any) {
	if l == nil || l.level < levelDebug {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("%s [DEBUG] "+format, append([]any{timestamp}, args...)...)
}

// Writer returns an io.Writer that writes to the log file, for composing
// with a LogReporter.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}
