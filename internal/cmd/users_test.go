package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/prompt"
)

func TestUsersLifecycle(t *testing.T) {
	testEnv(t)

	out, err := runCLI(t, "users", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No authorized users.") {
		t.Errorf("empty list = %q", out)
	}

	if _, err := runCLI(t, "users", "add", "42", "--name", "alice"); err != nil {
		t.Fatalf("users add: %v", err)
	}
	if _, err := runCLI(t, "users", "add", "7"); err != nil {
		t.Fatalf("users add: %v", err)
	}

	out, err = runCLI(t, "users", "list")
	if err != nil {
		t.Fatal(err)
	}
	if out != "ID  NAME\n42  alice\n7   -\n" {
		t.Errorf("users list = %q", out)
	}

	_, err = runCLI(t, "users", "add", "42")
	if !errors.Is(err, config.ErrUserExists) {
		t.Errorf("duplicate add error = %v, want ErrUserExists", err)
	}

	if _, err := runCLI(t, "users", "remove", "--yes", "7"); err != nil {
		t.Fatalf("users remove: %v", err)
	}
	_, err = runCLI(t, "users", "rm", "-y", "7")
	if !errors.Is(err, config.ErrUserNotFound) {
		t.Errorf("second remove error = %v, want ErrUserNotFound", err)
	}

	out, _ = runCLI(t, "users", "list")
	if out != "ID  NAME\n42  alice\n" {
		t.Errorf("users list = %q", out)
	}
}

func TestUsersRejectInvalidID(t *testing.T) {
	testEnv(t)
	for _, id := range []string{"abc", "0", "-5"} {
		if _, err := runCLI(t, "users", "add", "--", id); err == nil {
			t.Errorf("users add %q succeeded", id)
		}
	}
}

func TestUsersRemoveAsksForConfirmation(t *testing.T) {
	testEnv(t)
	if _, err := runCLI(t, "users", "add", "42"); err != nil {
		t.Fatal(err)
	}

	answers := &prompt.Scripted{Answers: []bool{false, true}}
	confirmer = answers

	out, err := runCLI(t, "users", "remove", "42")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("declined remove printed %q", out)
	}
	out, _ = runCLI(t, "users", "list")
	if !strings.Contains(out, "42") {
		t.Fatalf("user removed despite declined confirmation: %q", out)
	}

	if _, err := runCLI(t, "users", "remove", "42"); err != nil {
		t.Fatal(err)
	}
	out, _ = runCLI(t, "users", "list")
	if !strings.Contains(out, "No authorized users.") {
		t.Errorf("users list after confirmed remove = %q", out)
	}
	if len(answers.Questions) != 2 || answers.Questions[0] != "Remove user 42?" {
		t.Errorf("questions = %q", answers.Questions)
	}
}
