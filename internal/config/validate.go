package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validRoles = map[string]bool{
	RoleAdmin:  true,
	RoleViewer: true,
}

// Validate checks field values and returns an error naming the first bad
// field. Empty optional fields are valid.
func Validate(cfg *Config) error {
	if cfg.Relay.URL != "" {
		if err := validateURL(cfg.Relay.URL, "relay.url", "ws", "wss"); err != nil {
			return err
		}
	}
	if err := validateDuration(cfg.Relay.ReconnectMin, "relay.reconnect_min"); err != nil {
		return err
	}
	if err := validateDuration(cfg.Relay.ReconnectMax, "relay.reconnect_max"); err != nil {
		return err
	}

	seen := make(map[int64]bool, len(cfg.AuthorizedUsers))
	for i, u := range cfg.AuthorizedUsers {
		if u.ID == 0 {
			return fmt.Errorf("authorized_users[%d].id: must be set", i)
		}
		if seen[u.ID] {
			return fmt.Errorf("authorized_users[%d].id: duplicate id %d", i, u.ID)
		}
		seen[u.ID] = true
	}

	for i, c := range cfg.AllowedCommands {
		if strings.TrimSpace(c) == "" || len(strings.Fields(c)) != 1 {
			return fmt.Errorf("allowed_commands[%d]: %q must be a single word", i, c)
		}
	}
	if cfg.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout: must be positive, got %d", cfg.CommandTimeout)
	}

	if cfg.Audit.ForwardURL != "" {
		if err := validateURL(cfg.Audit.ForwardURL, "audit.forward_url", "http", "https"); err != nil {
			return err
		}
	}
	if err := validateDuration(cfg.Audit.ForwardTimeout, "audit.forward_timeout"); err != nil {
		return err
	}
	if cfg.Audit.HistoryRetain < 0 {
		return fmt.Errorf("audit.history_retain: must be non-negative, got %d", cfg.Audit.HistoryRetain)
	}

	s := cfg.Supervisor
	for _, f := range []struct{ name, value string }{
		{"supervisor.settle_interval", s.SettleInterval},
		{"supervisor.grace_interval", s.GraceInterval},
		{"supervisor.kill_wait", s.KillWait},
		{"supervisor.restart_pause", s.RestartPause},
	} {
		if err := validateDuration(f.value, f.name); err != nil {
			return err
		}
	}
	if s.StartChecks < 0 {
		return fmt.Errorf("supervisor.start_checks: must be non-negative, got %d", s.StartChecks)
	}
	if s.StopChecks < 0 {
		return fmt.Errorf("supervisor.stop_checks: must be non-negative, got %d", s.StopChecks)
	}

	if cfg.Console.Listen != "" {
		if err := validateListenAddr(cfg.Console.Listen, "console.listen"); err != nil {
			return err
		}
	}
	tokens := make(map[string]bool, len(cfg.Console.Tokens))
	for i, t := range cfg.Console.Tokens {
		if t.Token == "" {
			return fmt.Errorf("console.tokens[%d].token: must be set", i)
		}
		if tokens[t.Token] {
			return fmt.Errorf("console.tokens[%d].token: duplicate token", i)
		}
		tokens[t.Token] = true
		if !validRoles[t.Role] {
			return fmt.Errorf("console.tokens[%d].role: invalid value %q, must be one of: admin, viewer", i, t.Role)
		}
	}

	if cfg.Log.Level != "" && !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level: invalid value %q, must be one of: debug, info, warn, error", cfg.Log.Level)
	}

	return nil
}

// validateListenAddr accepts "host:port" or ":port" with port 1-65535.
func validateListenAddr(addr, field string) error {
	colonIdx := strings.LastIndex(addr, ":")
	if colonIdx == -1 {
		return fmt.Errorf("%s: invalid format %q, expected host:port or :port", field, addr)
	}
	portStr := addr[colonIdx+1:]
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("%s: invalid port %q in %q", field, portStr, addr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: invalid port number %d, must be 1-65535", field, port)
	}
	return nil
}

// validateDuration accepts "" or a positive time.ParseDuration string.
func validateDuration(d, field string) error {
	if d == "" {
		return nil
	}
	v, err := time.ParseDuration(d)
	if err != nil || v < 0 {
		return fmt.Errorf("%s: invalid duration %q", field, d)
	}
	return nil
}

func validateURL(raw, field string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s: invalid URL %q", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme must be one of %s, got %q", field, strings.Join(schemes, ", "), u.Scheme)
}
