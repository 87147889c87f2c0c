package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/xdg/telecommand/internal/clog"
)

// Edit opens path in $EDITOR (vi by default), creating the default file
// first if needed. A file that fails to load afterwards only produces a
// warning so the user can fix it later.
func Edit(path string) error {
	if err := WriteDefault(path); err != nil {
		return fmt.Errorf("create default config: %w", err)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %q failed: %w", editor, err)
	}

	if _, err := Load(path); err != nil {
		clog.Warn("config has errors after edit: %v", err)
	}
	return nil
}
