package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_MissingWritesTemplate(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "telecommand", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CommandTimeout != 30 {
		t.Errorf("CommandTimeout = %d, want 30", cfg.CommandTimeout)
	}
	if !cfg.Policy().Enabled {
		t.Error("whitelist should default to enabled")
	}
	if len(cfg.AuthorizedUsers) != 0 {
		t.Errorf("AuthorizedUsers = %v, want none", cfg.AuthorizedUsers)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config permissions = %o, want 600", info.Mode().Perm())
	}
}

func TestLoad_TemplateRoundTrips(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	path := writeConfig(t, defaultConfigTemplate)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(template) error = %v", err)
	}
	if strings.Join(cfg.AllowedCommands, ",") != strings.Join(DefaultAllowedCommands, ",") {
		t.Errorf("AllowedCommands = %v", cfg.AllowedCommands)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_Valid(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	path := writeConfig(t, `
relay:
  url: wss://relay.example.com/updates
  token: abc
authorized_users:
  - id: 42
    name: ops
  - id: 7
whitelist_enabled: true
allowed_commands: [uptime, df]
command_timeout: 10
supervisor:
  settle_interval: 500ms
  stop_checks: 4
console:
  listen: ":8080"
  tokens:
    - name: ops
      token: t1
      role: admin
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.PrincipalIDs(); len(got) != 2 || got[0] != 42 || got[1] != 7 {
		t.Errorf("PrincipalIDs() = %v", got)
	}
	p := cfg.Policy()
	if !p.Enabled || len(p.Allowed) != 2 || p.Allowed[1] != "df" {
		t.Errorf("Policy() = %+v", p)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %s", cfg.Timeout())
	}
	if cfg.Supervisor.SettleInterval != "500ms" || cfg.Supervisor.StopChecks != 4 {
		t.Errorf("Supervisor = %+v", cfg.Supervisor)
	}
	// Unset fields fall back to defaults.
	if cfg.Supervisor.GraceInterval != "2s" || cfg.Supervisor.StartChecks != 1 {
		t.Errorf("supervisor defaults not applied: %+v", cfg.Supervisor)
	}
	if cfg.Supervisor.PIDFile != filepath.Join(state, "telecommand", "worker.pid") {
		t.Errorf("PIDFile = %q", cfg.Supervisor.PIDFile)
	}
	if cfg.Console.Database != filepath.Join(state, "telecommand", "console.db") {
		t.Errorf("Database = %q", cfg.Console.Database)
	}
}

func TestLoad_ExplicitEmptyAllowList(t *testing.T) {
	path := writeConfig(t, "whitelist_enabled: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.AllowedCommands) != 0 {
		t.Errorf("AllowedCommands = %v, want empty once whitelist_enabled is set", cfg.AllowedCommands)
	}
}

func TestLoad_WhitelistDisabled(t *testing.T) {
	path := writeConfig(t, "whitelist_enabled: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Policy().Enabled {
		t.Error("Policy().Enabled = true, want false")
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, "supervisor:\n  pid_file: ~/run/worker.pid\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Supervisor.PIDFile != filepath.Join(home, "run", "worker.pid") {
		t.Errorf("PIDFile = %q", cfg.Supervisor.PIDFile)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "bogus: 1\n", "bogus"},
		{"bad yaml", "relay: [\n", "parse config"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"duplicate user", "authorized_users:\n  - id: 1\n  - id: 1\n", "duplicate id 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil || cfg == nil {
		t.Fatalf("Parse(nil) = %v, %v", cfg, err)
	}
}

func TestDuration(t *testing.T) {
	if Duration("", time.Second) != time.Second {
		t.Error("empty should return default")
	}
	if Duration("250ms", time.Second) != 250*time.Millisecond {
		t.Error("250ms not parsed")
	}
	if Duration("nope", time.Second) != time.Second {
		t.Error("invalid should return default")
	}
}
