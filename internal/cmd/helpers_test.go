package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/term"
)

// testEnv points every config and state path at fresh temp directories and
// returns the config file path.
func testEnv(t *testing.T) string {
	t.Helper()
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(config.EnvPath, "")

	configFlag, debugFlag, silentFlag, userNameFlag = "", false, false, ""
	userYesFlag, confirmer = false, nil
	t.Cleanup(func() {
		_ = clog.Close()
		clog.Reset()
		term.Reset()
	})
	return filepath.Join(cfgHome, "telecommand", "config.yaml")
}

// runCLI executes the root command with args and returns what it printed
// through term.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	term.SetOutput(&out)
	term.SetErrOutput(&out)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	userNameFlag, userYesFlag = "", false
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}
