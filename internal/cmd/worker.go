package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xdg/telecommand/internal/audit"
	"github.com/xdg/telecommand/internal/chat"
	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/gate"
	"github.com/xdg/telecommand/internal/relay"
	"github.com/xdg/telecommand/internal/supervisor"
	"github.com/xdg/telecommand/internal/term"
	"github.com/xdg/telecommand/internal/version"
)

// ExecutableEnvVar overrides the binary the supervisor launches as the worker.
const ExecutableEnvVar = "TELECOMMAND_EXECUTABLE"

// statusNotRunning is the exit code of "worker status" for a stopped
// worker, following the LSB init script convention.
const statusNotRunning = 3

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run or manage the command worker",
	Long: `The worker connects to the chat relay and runs the commands authorized
users send. "worker run" runs it in the foreground; start, stop, restart and
status manage a background worker tracked by a PID file.`,
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the worker in the foreground",
	Long: `Run the worker in the foreground until interrupted.

This is what "worker start" launches in the background. It needs relay.url
in the configuration and at least one authorized user to be useful.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the worker in the background",
	Args:  cobra.NoArgs,
	RunE:  workerAction((*supervisor.Supervisor).Start),
}

var workerStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background worker",
	Long: `Stop the background worker. It is sent SIGTERM and, if it has not exited
after the grace interval, SIGKILL.`,
	Args: cobra.NoArgs,
	RunE: workerAction((*supervisor.Supervisor).Stop),
}

var workerRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop and start the background worker",
	Args:  cobra.NoArgs,
	RunE:  workerAction((*supervisor.Supervisor).Restart),
}

var workerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the background worker is running",
	Long: `Report whether the background worker is running. Exits 0 when it is
running and 3 when it is not.`,
	Args: cobra.NoArgs,
	RunE: runWorkerStatus,
}

func init() {
	workerCmd.AddCommand(workerRunCmd)
	workerCmd.AddCommand(workerStartCmd)
	workerCmd.AddCommand(workerStopCmd)
	workerCmd.AddCommand(workerRestartCmd)
	workerCmd.AddCommand(workerStatusCmd)
	rootCmd.AddCommand(workerCmd)
}

// runWorker wires the gate, audit sink and relay together and blocks until
// SIGINT or SIGTERM.
func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if cfg.Relay.URL == "" {
		return errors.New("relay.url is not configured")
	}
	if len(cfg.AuthorizedUsers) == 0 {
		clog.Warn("worker: no authorized users configured; every command will be refused")
	}

	sink, closeSink, err := newAuditSink(cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	g := gate.New(cfg.PrincipalIDs(), cfg.Policy(), executor.NewShell(), cfg.Timeout())

	client := relay.NewClient(cfg.Relay.URL, cfg.Relay.Token)
	client.ReconnectMin = config.Duration(cfg.Relay.ReconnectMin, relay.DefaultReconnectMin)
	client.ReconnectMax = config.Duration(cfg.Relay.ReconnectMax, relay.DefaultReconnectMax)
	client.UserAgent = version.UserAgent()

	bot := chat.New(g, sink, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := g.Policy()
	clog.Info("worker: started (pid %d, %d authorized users, whitelist enabled=%t with %d commands)",
		os.Getpid(), len(cfg.AuthorizedUsers), policy.Enabled, len(policy.Allowed))
	err = client.Run(ctx, bot)
	clog.Info("worker: stopped")
	return err
}

// newAuditSink builds the worker's audit sink from cfg. The returned func
// drains pending forwards and closes the audit log.
func newAuditSink(cfg *config.Config) (*audit.Sink, func(), error) {
	opts := audit.Options{
		Retain:         cfg.Audit.HistoryRetain,
		ForwardTimeout: config.Duration(cfg.Audit.ForwardTimeout, audit.DefaultForwardTimeout),
	}

	var logFile io.Closer
	if cfg.Audit.LogFile != "" {
		f, err := clog.OpenLogFile(cfg.Audit.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		opts.Log = f
		logFile = f
	}
	if cfg.Audit.ForwardURL != "" {
		fwd := audit.NewHTTPForwarder(cfg.Audit.ForwardURL, cfg.Audit.ForwardToken)
		fwd.Client.Timeout = opts.ForwardTimeout
		fwd.UserAgent = version.UserAgent()
		opts.Forwarder = fwd
	}

	sink := audit.NewSink(opts)
	return sink, func() {
		sink.Close()
		if logFile != nil {
			_ = logFile.Close()
		}
	}, nil
}

// newSupervisor builds the supervisor for the worker described by cfg.
func newSupervisor(cfg *config.Config) (*supervisor.Supervisor, error) {
	command, err := workerCommand(cfg.Supervisor.Command, configPath())
	if err != nil {
		return nil, err
	}
	proc := &supervisor.OSProcess{
		Command: command,
		LogPath: cfg.Supervisor.LogFile,
	}
	return supervisor.New(
		supervisor.NewRecordStore(cfg.Supervisor.PIDFile),
		proc,
		supervisor.WithTiming(supervisorTiming(cfg.Supervisor)),
	), nil
}

// workerCommand returns configured, or this binary's "worker run" against
// the same config file.
func workerCommand(configured []string, cfgPath string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	exe := os.Getenv(ExecutableEnvVar)
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate telecommand executable: %w", err)
		}
	}
	return []string{exe, "worker", "run", "--config", cfgPath}, nil
}

func supervisorTiming(sc config.SupervisorConfig) supervisor.Timing {
	def := supervisor.DefaultTiming()
	t := supervisor.Timing{
		SettleInterval: config.Duration(sc.SettleInterval, def.SettleInterval),
		StartChecks:    sc.StartChecks,
		GraceInterval:  config.Duration(sc.GraceInterval, def.GraceInterval),
		StopChecks:     sc.StopChecks,
		KillWait:       config.Duration(sc.KillWait, def.KillWait),
		RestartPause:   config.Duration(sc.RestartPause, def.RestartPause),
	}
	if t.StartChecks == 0 {
		t.StartChecks = def.StartChecks
	}
	if t.StopChecks == 0 {
		t.StopChecks = def.StopChecks
	}
	return t
}

func workerAction(op func(*supervisor.Supervisor) supervisor.Result) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}
		sup, err := newSupervisor(cfg)
		if err != nil {
			return err
		}
		res := op(sup)
		if res.Err != nil {
			clog.Debug("worker %s: %v", cmd.Name(), res.Err)
		}
		if !res.Success {
			term.Error("%s", res.Message)
			return NewExitCodeError(1)
		}
		term.Println(res.Message)
		return nil
	}
}

func runWorkerStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	sup, err := newSupervisor(cfg)
	if err != nil {
		return err
	}
	res := sup.Status()
	term.Println(res.Message)
	if res.State == supervisor.StateStopped {
		return NewExitCodeError(statusNotRunning)
	}
	return nil
}
