package clog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes leveled lines to a file writer and, for warnings and
// errors, to an interactive stderr writer.
type Logger struct {
	mu       sync.Mutex
	level    Level
	out      io.Writer // file output, nil when file logging is off
	stderr   io.Writer // interactive echo for warn/error
	detached bool      // suppresses the stderr echo
	now      func() time.Time
}

// NewLogger returns an info-level logger that echoes to os.Stderr.
func NewLogger() *Logger {
	return &Logger{
		level:  LevelInfo,
		stderr: os.Stderr,
		now:    time.Now,
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level reports the current minimum level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the file writer. nil disables file logging.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// SetStderr sets the writer used for the warn/error echo. nil disables it.
func (l *Logger) SetStderr(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stderr = w
}

// SetDetached turns the stderr echo off for background processes.
func (l *Logger) SetDetached(detached bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = detached
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *Logger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.out != nil {
		ts := l.now().UTC().Format(time.RFC3339)
		_, _ = fmt.Fprintf(l.out, "%s [%s] %s\n", ts, level, msg)
	}
	if level >= LevelWarn && !l.detached && l.stderr != nil {
		_, _ = fmt.Fprintf(l.stderr, "[%s] %s\n", level, msg)
	}
}

// close releases the file writer if it has a Close method.
func (l *Logger) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.out.(io.Closer)
	l.out = nil
	if !ok {
		return nil
	}
	return c.Close()
}

// OpenLogFile opens path for appending, creating its directory.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// StateDir returns $XDG_STATE_HOME/telecommand, defaulting to
// ~/.local/state/telecommand.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "telecommand")
}

// DefaultLogPath is the operational log shared by all subcommands.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "telecommand.log")
}

// WorkerLogPath receives the supervised worker's stdout and stderr.
func WorkerLogPath() string {
	return filepath.Join(StateDir(), "worker.log")
}
