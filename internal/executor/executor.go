// Package executor runs operator-supplied command strings on the host.
//
// Commands are interpreted by a POSIX shell, so pipes, redirects, globbing
// and command chaining all work. That is the feature and also the attack
// surface: anything that reaches Runner.Run executes with the worker's
// privileges. Shell.Run is the only place in telecommand that hands a
// string to an interpreter; authorization and whitelisting happen before
// it in internal/gate.
package executor

import (
	"context"
	"time"
)

// DefaultTimeout bounds a command when the caller passes zero.
const DefaultTimeout = 30 * time.Second

// EmptyOutput replaces the output of a successful command that printed nothing.
const EmptyOutput = "Command executed successfully (no output)"

// ErrorKind classifies a failed Result.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindNotWhitelisted ErrorKind = "not_whitelisted"
	KindTimeout        ErrorKind = "timeout"
	KindExecution      ErrorKind = "execution_error"
)

// Runner runs a command string with a wall-clock bound. Implementations
// report every outcome through Result and never return an error or panic.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) Result
}

// Result is the immutable outcome of one command.
type Result struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Kind     ErrorKind     `json:"kind,omitempty"`
	ExitCode int           `json:"exit_code"` // -1 when the process produced no exit status
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Denied builds the result for a command the whitelist rejected.
// No process is involved, so ExitCode is -1.
func Denied(output, reason string) Result {
	return Result{
		Output:   output,
		Kind:     KindNotWhitelisted,
		ExitCode: -1,
		Error:    reason,
	}
}
