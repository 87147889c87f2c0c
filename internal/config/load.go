package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/xdg/telecommand/internal/clog"
)

// Load reads, validates and completes the configuration at path. A missing
// file is created from the commented template and the defaults returned.
// Path fields beginning with ~ are expanded.
func Load(path string) (*Config, error) {
	clog.Debug("config: loading %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		clog.Info("config: %s not found, writing defaults", path)
		if writeErr := WriteDefault(path); writeErr != nil {
			clog.Warn("config: failed to create default config: %v", writeErr)
		}
		cfg := DefaultConfig()
		expandPaths(cfg)
		return cfg, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	applyDefaults(cfg)
	expandPaths(cfg)
	return cfg, nil
}

func expandPaths(cfg *Config) {
	cfg.Audit.LogFile = expandHome(cfg.Audit.LogFile)
	cfg.Supervisor.PIDFile = expandHome(cfg.Supervisor.PIDFile)
	cfg.Supervisor.LogFile = expandHome(cfg.Supervisor.LogFile)
	cfg.Console.Database = expandHome(cfg.Console.Database)
	cfg.Log.File = expandHome(cfg.Log.File)
}
