// Package config loads telecommand's YAML configuration. One file,
// normally ~/.config/telecommand/config.yaml, configures the worker, the
// console and the CLI.
package config

// Config is the top-level configuration.
type Config struct {
	Relay            RelayConfig      `yaml:"relay,omitempty"`
	AuthorizedUsers  []AuthorizedUser `yaml:"authorized_users,omitempty"`
	WhitelistEnabled *bool            `yaml:"whitelist_enabled,omitempty"`
	AllowedCommands  []string         `yaml:"allowed_commands,omitempty"`
	CommandTimeout   int              `yaml:"command_timeout,omitempty"` // seconds
	Audit            AuditConfig      `yaml:"audit,omitempty"`
	Supervisor       SupervisorConfig `yaml:"supervisor,omitempty"`
	Console          ConsoleConfig    `yaml:"console,omitempty"`
	Log              LogConfig        `yaml:"log,omitempty"`
}

// RelayConfig locates the chat relay the worker receives updates from.
type RelayConfig struct {
	URL          string `yaml:"url,omitempty"`
	Token        string `yaml:"token,omitempty"`
	ReconnectMin string `yaml:"reconnect_min,omitempty"`
	ReconnectMax string `yaml:"reconnect_max,omitempty"`
}

// AuthorizedUser is a chat principal allowed to run commands.
type AuthorizedUser struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name,omitempty"`
}

// AuditConfig controls where audit entries go besides the in-memory history.
type AuditConfig struct {
	LogFile        string `yaml:"log_file,omitempty"`
	ForwardURL     string `yaml:"forward_url,omitempty"`
	ForwardToken   string `yaml:"forward_token,omitempty"`
	ForwardTimeout string `yaml:"forward_timeout,omitempty"`
	HistoryRetain  int    `yaml:"history_retain,omitempty"`
}

// SupervisorConfig controls how the console runs the worker.
type SupervisorConfig struct {
	Command        []string `yaml:"command,omitempty"` // empty runs this binary's "worker run"
	PIDFile        string   `yaml:"pid_file,omitempty"`
	LogFile        string   `yaml:"log_file,omitempty"`
	SettleInterval string   `yaml:"settle_interval,omitempty"`
	StartChecks    int      `yaml:"start_checks,omitempty"`
	GraceInterval  string   `yaml:"grace_interval,omitempty"`
	StopChecks     int      `yaml:"stop_checks,omitempty"`
	KillWait       string   `yaml:"kill_wait,omitempty"`
	RestartPause   string   `yaml:"restart_pause,omitempty"`
}

// ConsoleConfig configures the admin HTTP API and the audit collector.
type ConsoleConfig struct {
	Listen         string         `yaml:"listen,omitempty"`
	Database       string         `yaml:"database,omitempty"`
	CollectorToken string         `yaml:"collector_token,omitempty"`
	Tokens         []ConsoleToken `yaml:"tokens,omitempty"`
}

// ConsoleToken grants a bearer token a console role.
type ConsoleToken struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	Role  string `yaml:"role"`
}

// Console roles.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// LogConfig controls the operational log.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty"`
}
