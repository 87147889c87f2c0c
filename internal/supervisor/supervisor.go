// Package supervisor starts, stops and tracks the telecommand worker
// process on behalf of the console.
//
// Exactly one worker is tracked, through a Record persisted by a
// RecordStore. The record is never trusted on its own: every operation
// re-probes the PID and deletes the record when the process is gone.
// Operations hold an advisory lock beside the record, so a CLI invocation
// and a running console never interleave on the same worker.
// Readiness and shutdown are judged with fixed settle windows rather than
// events, so a slow-booting worker can be reported as failed and a slow
// shutdown is escalated to SIGKILL.
package supervisor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/xdg/telecommand/internal/clog"
)

var (
	// ErrAlreadyRunning is reported by Start when a live worker is tracked.
	ErrAlreadyRunning = errors.New("worker is already running")
	// ErrNotRunning is reported by Stop when no live worker is tracked.
	ErrNotRunning = errors.New("worker is not running")
	// ErrStartFailed is reported when a spawned worker did not survive its
	// settle window.
	ErrStartFailed = errors.New("worker failed to start")
	// ErrStopFailed is reported when the worker survived SIGKILL.
	ErrStopFailed = errors.New("worker did not exit")
)

// State is the supervisor's view of the worker.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// stateIdle marks that no Start, Stop or Restart is in flight.
const stateIdle State = ""

// Timing holds the settle windows. Each wait is an interval repeated up to
// a check count.
type Timing struct {
	SettleInterval time.Duration // between spawn and each liveness check
	StartChecks    int           // checks the worker must survive
	GraceInterval  time.Duration // between SIGTERM and each liveness check
	StopChecks     int           // checks before escalating to SIGKILL
	KillWait       time.Duration // after SIGKILL
	RestartPause   time.Duration // between stop and start in Restart
}

// DefaultTiming waits 2s after spawn, 2s after SIGTERM, 1s after SIGKILL
// and pauses 1s inside Restart.
func DefaultTiming() Timing {
	return Timing{
		SettleInterval: 2 * time.Second,
		StartChecks:    1,
		GraceInterval:  2 * time.Second,
		StopChecks:     1,
		KillWait:       time.Second,
		RestartPause:   time.Second,
	}
}

func (t Timing) normalized() Timing {
	if t.StartChecks < 1 {
		t.StartChecks = 1
	}
	if t.StopChecks < 1 {
		t.StopChecks = 1
	}
	return t
}

// Result is the outcome of a supervisor operation. Operations never return
// a bare error; Err carries the cause for errors.Is checks.
type Result struct {
	Success bool
	Message string
	State   State
	PID     int
	Err     error
}

// Supervisor manages the worker. Start, Stop and Restart are mutually
// exclusive, within this process through mu and across processes through
// the record lock. Status answers from the in-flight transition when there
// is one and re-probes the worker otherwise.
type Supervisor struct {
	mu         sync.Mutex
	store      *RecordStore
	proc       Process
	clock      Clock
	timing     Timing
	transition atomic.Value // State; stateIdle unless an operation runs
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the wall clock, typically with a fake in tests.
func WithClock(c Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithTiming replaces DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *Supervisor) { s.timing = t.normalized() }
}

// New returns a Supervisor that tracks the worker in store.
func New(store *RecordStore, proc Process, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:  store,
		proc:   proc,
		clock:  RealClock(),
		timing: DefaultTiming(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transition.Store(stateIdle)
	return s
}

// Start spawns the worker unless a live one is already tracked.
func (s *Supervisor) Start() Result {
	return s.exclusive(StateStarting, s.start)
}

// Stop terminates the tracked worker, escalating from SIGTERM to SIGKILL.
// The record is gone when Stop returns, whatever the outcome.
func (s *Supervisor) Stop() Result {
	return s.exclusive(StateStopping, s.stop)
}

// Restart stops the worker and starts a new one. A worker that was not
// running does not prevent the start.
func (s *Supervisor) Restart() Result {
	return s.exclusive(StateStopping, func() Result {
		stopped := s.stop()
		if !stopped.Success && !errors.Is(stopped.Err, ErrNotRunning) {
			return stopped
		}
		s.transition.Store(StateStarting)
		s.clock.Sleep(s.timing.RestartPause)
		return s.start()
	})
}

// exclusive runs op holding mu and the record lock, publishing state for
// Status until op returns.
func (s *Supervisor) exclusive(state State, op func() Result) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transition.Store(state)
	defer s.transition.Store(stateIdle)

	unlock, err := s.store.Lock()
	if err != nil {
		clog.Error("supervisor: %v", err)
		return Result{Message: fmt.Sprintf("Error locking worker record: %v", err), Err: err}
	}
	defer unlock()
	return op()
}

// Status re-probes the tracked worker and deletes a stale record. While
// a Start, Stop or Restart is in flight it reports that transition
// instead of waiting for it.
func (s *Supervisor) Status() Result {
	if state, _ := s.transition.Load().(State); state != stateIdle {
		res := Result{Success: true, State: state, Message: fmt.Sprintf("Worker is %s", state)}
		if rec, err := s.store.Load(); err == nil && rec != nil {
			res.PID = rec.PID
		}
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Healing a stale record must not race another process's Start.
	if unlock, err := s.store.Lock(); err != nil {
		clog.Warn("supervisor: %v", err)
	} else {
		defer unlock()
	}

	pid, alive := s.live()
	if !alive {
		return Result{Success: true, State: StateStopped, Message: "Worker is not running"}
	}
	return Result{
		Success: true,
		State:   StateRunning,
		PID:     pid,
		Message: fmt.Sprintf("Worker is running (PID: %d)", pid),
	}
}

func (s *Supervisor) start() Result {
	if pid, alive := s.live(); alive {
		return Result{
			State:   StateRunning,
			PID:     pid,
			Message: fmt.Sprintf("Worker is already running (PID: %d)", pid),
			Err:     ErrAlreadyRunning,
		}
	}

	pid, err := s.proc.Spawn()
	if err != nil {
		clog.Error("supervisor: %v", err)
		return Result{State: StateStopped, Message: fmt.Sprintf("Error starting worker: %v", err), Err: err}
	}
	if err := s.store.Save(Record{PID: pid, StartedAt: s.clock.Now()}); err != nil {
		// An untracked worker could never be stopped from here.
		_ = s.proc.Signal(pid, syscall.SIGKILL)
		clog.Error("supervisor: %v", err)
		return Result{State: StateStopped, Message: fmt.Sprintf("Error starting worker: %v", err), Err: err}
	}
	clog.Info("supervisor: spawned worker pid=%d", pid)

	for i := 0; i < s.timing.StartChecks; i++ {
		s.clock.Sleep(s.timing.SettleInterval)
		if !s.proc.Alive(pid) {
			if err := s.store.Clear(); err != nil {
				clog.Warn("supervisor: %v", err)
			}
			clog.Warn("supervisor: worker pid=%d exited during startup", pid)
			return Result{State: StateStopped, Message: "Worker failed to start", Err: ErrStartFailed}
		}
	}

	return Result{
		Success: true,
		State:   StateRunning,
		PID:     pid,
		Message: fmt.Sprintf("Worker started successfully (PID: %d)", pid),
	}
}

func (s *Supervisor) stop() Result {
	pid, alive := s.live()
	if !alive {
		return Result{State: StateStopped, Message: "Worker is not running", Err: ErrNotRunning}
	}

	exited := false
	if err := s.proc.Signal(pid, syscall.SIGTERM); err != nil {
		clog.Warn("supervisor: SIGTERM worker pid=%d: %v", pid, err)
	} else {
		for i := 0; i < s.timing.StopChecks; i++ {
			s.clock.Sleep(s.timing.GraceInterval)
			if !s.proc.Alive(pid) {
				exited = true
				break
			}
		}
	}

	if !exited {
		clog.Warn("supervisor: worker pid=%d ignored SIGTERM, sending SIGKILL", pid)
		if err := s.proc.Signal(pid, syscall.SIGKILL); err != nil {
			clog.Warn("supervisor: SIGKILL worker pid=%d: %v", pid, err)
		}
		s.clock.Sleep(s.timing.KillWait)
		exited = !s.proc.Alive(pid)
	}

	clearErr := s.store.Clear()
	if clearErr != nil {
		clog.Error("supervisor: %v", clearErr)
	}

	switch {
	case !exited:
		return Result{
			State:   StateStopped,
			PID:     pid,
			Message: fmt.Sprintf("Error stopping worker: PID %d survived SIGKILL", pid),
			Err:     ErrStopFailed,
		}
	case clearErr != nil:
		return Result{State: StateStopped, Message: fmt.Sprintf("Error stopping worker: %v", clearErr), Err: clearErr}
	}
	clog.Info("supervisor: worker pid=%d stopped", pid)
	return Result{Success: true, State: StateStopped, Message: "Worker stopped successfully"}
}

// live returns the tracked PID if that process exists, deleting the record
// when it does not.
func (s *Supervisor) live() (int, bool) {
	rec, err := s.store.Load()
	if err != nil {
		clog.Warn("supervisor: discarding unreadable record: %v", err)
		s.heal()
		return 0, false
	}
	if rec == nil {
		return 0, false
	}
	if !s.proc.Alive(rec.PID) {
		clog.Info("supervisor: removing stale record for pid=%d", rec.PID)
		s.heal()
		return 0, false
	}
	return rec.PID, true
}

func (s *Supervisor) heal() {
	if err := s.store.Clear(); err != nil {
		clog.Warn("supervisor: %v", err)
	}
}
