package clog

import (
	"io"
	"strings"
)

var std = NewLogger()

// Options configures the process-wide logger.
type Options struct {
	Path     string // empty disables file logging
	Level    Level
	Detached bool
}

// Configure applies opts to the global logger. A previously opened log
// file is closed first.
func Configure(opts Options) error {
	if err := std.close(); err != nil {
		return err
	}
	std.SetLevel(opts.Level)
	std.SetDetached(opts.Detached)
	if opts.Path == "" {
		return nil
	}
	f, err := OpenLogFile(opts.Path)
	if err != nil {
		return err
	}
	std.SetOutput(f)
	return nil
}

func Debug(format string, args ...any) { std.Debug(format, args...) }
func Info(format string, args ...any)  { std.Info(format, args...) }
func Warn(format string, args ...any)  { std.Warn(format, args...) }
func Error(format string, args ...any) { std.Error(format, args...) }

// Close flushes and closes the global log file.
func Close() error {
	return std.close()
}

// Reset restores the default global logger.
func Reset() {
	std = NewLogger()
}

// Discard silences the global logger.
func Discard() {
	std.SetOutput(io.Discard)
	std.SetStderr(nil)
}

// TestLogger returns a debug-level logger writing everything to w.
func TestLogger(w io.Writer) *Logger {
	l := NewLogger()
	l.SetOutput(w)
	l.SetStderr(nil)
	l.SetLevel(LevelDebug)
	return l
}

// ReplaceGlobal swaps the global logger and returns the old one.
func ReplaceGlobal(l *Logger) *Logger {
	old := std
	std = l
	return old
}

// Writer adapts the global logger to an io.Writer, one line per Write.
// It is handed to net/http.Server.ErrorLog and to child process plumbing.
func Writer(level Level) io.Writer {
	return levelWriter(level)
}

type levelWriter Level

func (w levelWriter) Write(p []byte) (int, error) {
	std.log(Level(w), "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
