package clog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer) *Logger {
	l := TestLogger(buf)
	l.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return l
}

func TestLoggerLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)

	l.Info("worker started pid=%d", 42)

	want := "2025-03-04T05:06:07Z [INFO] worker started pid=42\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	out := buf.String()
	if strings.Contains(out, "[DEBUG]") || strings.Contains(out, "[INFO]") {
		t.Errorf("levels below warn leaked: %q", out)
	}
	if !strings.Contains(out, "[WARN] w") || !strings.Contains(out, "[ERROR] e") {
		t.Errorf("missing warn/error lines: %q", out)
	}
}

func TestLoggerStderrEcho(t *testing.T) {
	var file, stderr bytes.Buffer
	l := NewLogger()
	l.SetOutput(&file)
	l.SetStderr(&stderr)

	l.Info("quiet")
	l.Warn("loud")

	if strings.Contains(stderr.String(), "quiet") {
		t.Errorf("info should not reach stderr: %q", stderr.String())
	}
	if stderr.String() != "[WARN] loud\n" {
		t.Errorf("stderr = %q", stderr.String())
	}

	stderr.Reset()
	l.SetDetached(true)
	l.Error("background")
	if stderr.Len() != 0 {
		t.Errorf("detached logger wrote to stderr: %q", stderr.String())
	}
	if !strings.Contains(file.String(), "[ERROR] background") {
		t.Errorf("detached logger should still write the file: %q", file.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "WARN" {
		t.Errorf("LevelWarn.String() = %q", LevelWarn.String())
	}
	if Level(99).String() != "UNKNOWN" {
		t.Errorf("Level(99).String() = %q", Level(99).String())
	}
}

func TestStatePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	if got, want := DefaultLogPath(), filepath.Join(dir, "telecommand", "telecommand.log"); got != want {
		t.Errorf("DefaultLogPath() = %q, want %q", got, want)
	}
	if got, want := WorkerLogPath(), filepath.Join(dir, "telecommand", "worker.log"); got != want {
		t.Errorf("WorkerLogPath() = %q, want %q", got, want)
	}
}

func TestOpenLogFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "x.log")
	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	_ = f.Close()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
