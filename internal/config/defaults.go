package config

import (
	"path/filepath"

	"github.com/xdg/telecommand/internal/clog"
)

func boolPtr(b bool) *bool {
	return &b
}

// DefaultAllowedCommands covers the read-only commands /status and /sys
// run on Linux and macOS.
var DefaultAllowedCommands = []string{
	"uptime", "hostname", "who", "whoami", "df",
	"free", "top", "lscpu", "ip", "ifconfig",
	"ps", "vm_stat", "sysctl",
}

// DefaultConfig returns a Config with every default filled in. The
// whitelist is on and nobody is authorized.
func DefaultConfig() *Config {
	state := clog.StateDir()
	return &Config{
		Relay: RelayConfig{
			ReconnectMin: "1s",
			ReconnectMax: "1m",
		},
		WhitelistEnabled: boolPtr(true),
		AllowedCommands:  append([]string(nil), DefaultAllowedCommands...),
		CommandTimeout:   30,
		Audit: AuditConfig{
			LogFile:        filepath.Join(state, "audit.log"),
			ForwardURL:     "http://127.0.0.1:5000/api/log",
			ForwardTimeout: "2s",
		},
		Supervisor: SupervisorConfig{
			PIDFile:        filepath.Join(state, "worker.pid"),
			LogFile:        clog.WorkerLogPath(),
			SettleInterval: "2s",
			StartChecks:    1,
			GraceInterval:  "2s",
			StopChecks:     1,
			KillWait:       "1s",
			RestartPause:   "1s",
		},
		Console: ConsoleConfig{
			Listen:   "127.0.0.1:5000",
			Database: filepath.Join(state, "console.db"),
		},
		Log: LogConfig{
			File:  clog.DefaultLogPath(),
			Level: "info",
		},
	}
}

// applyDefaults fills every unset field of cfg from DefaultConfig.
// AllowedCommands is left alone once whitelist_enabled or allowed_commands
// appears in the file, so an explicitly empty list stays empty.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	setString(&cfg.Relay.ReconnectMin, def.Relay.ReconnectMin)
	setString(&cfg.Relay.ReconnectMax, def.Relay.ReconnectMax)

	if cfg.WhitelistEnabled == nil && cfg.AllowedCommands == nil {
		cfg.AllowedCommands = def.AllowedCommands
	}
	if cfg.WhitelistEnabled == nil {
		cfg.WhitelistEnabled = def.WhitelistEnabled
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}

	setString(&cfg.Audit.LogFile, def.Audit.LogFile)
	setString(&cfg.Audit.ForwardURL, def.Audit.ForwardURL)
	setString(&cfg.Audit.ForwardTimeout, def.Audit.ForwardTimeout)

	s, d := &cfg.Supervisor, def.Supervisor
	setString(&s.PIDFile, d.PIDFile)
	setString(&s.LogFile, d.LogFile)
	setString(&s.SettleInterval, d.SettleInterval)
	setString(&s.GraceInterval, d.GraceInterval)
	setString(&s.KillWait, d.KillWait)
	setString(&s.RestartPause, d.RestartPause)
	if s.StartChecks == 0 {
		s.StartChecks = d.StartChecks
	}
	if s.StopChecks == 0 {
		s.StopChecks = d.StopChecks
	}

	setString(&cfg.Console.Listen, def.Console.Listen)
	setString(&cfg.Console.Database, def.Console.Database)
	setString(&cfg.Log.File, def.Log.File)
	setString(&cfg.Log.Level, def.Log.Level)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

const defaultConfigTemplate = `# telecommand configuration
#
# Changes take effect when the worker restarts:
#   telecommand worker restart

# Chat relay the worker connects to.
relay:
  # url: wss://relay.example.com/v1/updates
  # token: ""
  # reconnect_min: 1s
  # reconnect_max: 1m

# Chat users allowed to run commands. Anyone else is refused and the
# attempt is recorded as a security event. Manage with "telecommand users".
authorized_users: []
#  - id: 123456789
#    name: alice

# Only commands whose first word is listed may run. The list matches the
# first word exactly and does not inspect the rest of the command line:
# "ps aux; rm -rf ~" is allowed when "ps" is. Use "*" to allow everything.
whitelist_enabled: true
allowed_commands:
  - uptime
  - hostname
  - who
  - whoami
  - df
  - free
  - top
  - lscpu
  - ip
  - ifconfig
  - ps
  - vm_stat
  - sysctl

# Seconds before a running command is killed.
command_timeout: 30

audit:
  # log_file: ~/.local/state/telecommand/audit.log
  # forward_url: http://127.0.0.1:5000/api/log
  # forward_token: ""
  # forward_timeout: 2s
  # history_retain: 0   # 0 keeps every entry in memory

supervisor:
  # command: []   # default runs "telecommand worker run"
  # pid_file: ~/.local/state/telecommand/worker.pid
  # log_file: ~/.local/state/telecommand/worker.log
  # settle_interval: 2s
  # start_checks: 1
  # grace_interval: 2s
  # stop_checks: 1
  # kill_wait: 1s
  # restart_pause: 1s

console:
  # listen: 127.0.0.1:5000
  # database: ~/.local/state/telecommand/console.db
  # collector_token: ""
  tokens: []
  #  - name: ops
  #    token: change-me
  #    role: admin     # admin or viewer

log:
  # file: ~/.local/state/telecommand/telecommand.log
  level: info
`
