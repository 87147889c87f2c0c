package config

import (
	"time"

	"github.com/xdg/telecommand/internal/whitelist"
)

// Policy returns the whitelist described by the configuration.
func (c *Config) Policy() whitelist.Policy {
	enabled := c.WhitelistEnabled == nil || *c.WhitelistEnabled
	return whitelist.Policy{Enabled: enabled, Allowed: append([]string(nil), c.AllowedCommands...)}
}

// Timeout is CommandTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// PrincipalIDs lists the authorized user IDs.
func (c *Config) PrincipalIDs() []int64 {
	ids := make([]int64, 0, len(c.AuthorizedUsers))
	for _, u := range c.AuthorizedUsers {
		ids = append(ids, u.ID)
	}
	return ids
}

// Duration parses a validated duration field, returning def for "".
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
