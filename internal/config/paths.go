package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvPath overrides the configuration file location.
const EnvPath = "TELECOMMAND_CONFIG"

// Dir returns $XDG_CONFIG_HOME/telecommand, defaulting to
// ~/.config/telecommand.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = "~/.config"
	}
	return filepath.Join(expandHome(base), "telecommand")
}

// DefaultPath is Dir()/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// ResolvePath picks the configuration file: explicit if set, then
// $TELECOMMAND_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return expandHome(explicit)
	}
	if env := os.Getenv(EnvPath); env != "" {
		return expandHome(env)
	}
	return DefaultPath()
}

func ensureDirFor(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
