package config

import (
	"path/filepath"
	"testing"
)

func TestDirUsesXDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	if got, want := Dir(), filepath.Join(tmp, "telecommand"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
	if got, want := DefaultPath(), filepath.Join(tmp, "telecommand", "config.yaml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestDirDefaultsToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")

	if got, want := Dir(), filepath.Join(home, ".config", "telecommand"); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestResolvePath(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv(EnvPath, "")

	if got := ResolvePath(""); got != DefaultPath() {
		t.Errorf("ResolvePath(\"\") = %q", got)
	}

	t.Setenv(EnvPath, "/etc/telecommand.yaml")
	if got := ResolvePath(""); got != "/etc/telecommand.yaml" {
		t.Errorf("env override ignored: %q", got)
	}
	if got := ResolvePath("/tmp/explicit.yaml"); got != "/tmp/explicit.yaml" {
		t.Errorf("explicit path ignored: %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := map[string]string{
		"~":           home,
		"~/a/b":       filepath.Join(home, "a", "b"),
		"/abs":        "/abs",
		"rel/~":       "rel/~",
		"~user/thing": "~user/thing",
	}
	for in, want := range tests {
		if got := expandHome(in); got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
