package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// DefaultShell interprets command strings.
const DefaultShell = "/bin/sh"

// pipeDrain caps how long Run waits for output pipes after the process
// group is killed. A descendant that escaped the group can keep a pipe
// open indefinitely.
const pipeDrain = 2 * time.Second

// Shell runs commands with `sh -c` in a fresh process group so a timeout
// can kill every descendant at once.
type Shell struct {
	// Path is the interpreter. Empty means DefaultShell.
	Path string
	// Dir is the working directory. Empty means the worker's own.
	Dir string
}

// NewShell returns a Shell using DefaultShell.
func NewShell() *Shell {
	return &Shell{}
}

// Run executes command and classifies the outcome.
func (s *Shell) Run(ctx context.Context, command string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := s.Path
	if path == "" {
		path = DefaultShell
	}

	cmd := exec.CommandContext(ctx, path, "-c", command)
	cmd.Dir = s.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = pipeDrain

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		out := stdout.String()
		if out == "" {
			out = stderr.String()
		}
		if out == "" {
			out = EmptyOutput
		}
		return Result{Success: true, Output: out, ExitCode: 0, Duration: elapsed}
	}

	switch ctx.Err() {
	case context.DeadlineExceeded:
		msg := fmt.Sprintf("command timed out after %s", timeout)
		return Result{Output: msg, Kind: KindTimeout, ExitCode: -1, Error: msg, Duration: elapsed}
	case context.Canceled:
		return Result{Output: "command canceled", Kind: KindExecution, ExitCode: -1, Error: "command canceled", Duration: elapsed}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		out := stderr.String()
		if out == "" {
			out = stdout.String()
		}
		if out == "" {
			out = fmt.Sprintf("command exited with status %d", exitErr.ExitCode())
		}
		return Result{
			Output:   out,
			ExitCode: exitErr.ExitCode(),
			Error:    exitErr.Error(),
			Duration: elapsed,
		}
	}

	// Spawn failures (missing interpreter, permission denied) and
	// signal deaths outside our own timeout land here.
	msg := fmt.Sprintf("error executing command: %v", err)
	return Result{Output: msg, Kind: KindExecution, ExitCode: -1, Error: err.Error(), Duration: elapsed}
}
