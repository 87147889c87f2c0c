package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/xdg/telecommand/internal/clog"
)

// Process is the OS surface the supervisor drives.
type Process interface {
	// Spawn starts a detached worker and returns its PID.
	Spawn() (int, error)
	// Alive reports whether pid exists. It must not disturb the process.
	Alive(pid int) bool
	// Signal delivers sig to the worker and its process group.
	Signal(pid int, sig syscall.Signal) error
}

// OSProcess spawns Command in a new session with output appended to LogPath.
type OSProcess struct {
	Command []string
	Env     []string // added to the supervisor's environment
	Dir     string
	LogPath string // empty discards output
}

// Spawn starts the worker. A background Wait reaps it on exit so a dead
// child never lingers as a zombie that still answers signal 0.
func (p *OSProcess) Spawn() (int, error) {
	if len(p.Command) == 0 {
		return 0, errors.New("no worker command configured")
	}

	cmd := exec.Command(p.Command[0], p.Command[1:]...)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Dir = p.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if p.LogPath != "" {
		f, err := clog.OpenLogFile(p.LogPath)
		if err != nil {
			return 0, fmt.Errorf("open worker log: %w", err)
		}
		defer func() { _ = f.Close() }()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn worker: %w", err)
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		clog.Debug("supervisor: worker %d exited: %v", pid, err)
	}()
	return pid, nil
}

// Alive probes pid with signal 0. Any error, including EPERM for a PID
// that now belongs to someone else, counts as not running.
func (p *OSProcess) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// Signal targets the worker's process group, falling back to the PID alone
// when the group is gone or was never created.
func (p *OSProcess) Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := unix.Kill(-pid, sig); err == nil {
		return nil
	}
	if err := unix.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal %d with %s: %w", pid, unix.SignalName(sig), err)
	}
	return nil
}
