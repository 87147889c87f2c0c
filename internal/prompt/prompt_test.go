package prompt

import (
	"bytes"
	"strings"
	"testing"
)

func TestTerminalConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
		wantErr    bool
	}{
		{name: "empty uses default yes", input: "\n", defaultYes: true, want: true},
		{name: "empty uses default no", input: "\n", want: false},
		{name: "whitespace uses default", input: "   \n", defaultYes: true, want: true},
		{name: "y", input: "y\n", want: true},
		{name: "YES", input: "YES\n", want: true},
		{name: "n overrides default yes", input: "n\n", defaultYes: true, want: false},
		{name: "No", input: "No\n", defaultYes: true, want: false},
		{name: "no trailing newline", input: "yes", want: true},
		{name: "invalid", input: "maybe\n", wantErr: true},
		{name: "numeric", input: "1\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTerminal(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := p.Confirm("Continue?", tt.defaultYes)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTerminalConfirm_ShowsHint(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminal(strings.NewReader("\n"), &out)

	if _, err := p.Confirm("Remove user 42?", false); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Remove user 42? [y/N]: " {
		t.Errorf("prompt = %q", out.String())
	}

	out.Reset()
	p = NewTerminal(strings.NewReader("\n"), &out)
	if _, err := p.Confirm("Proceed?", true); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Proceed? [Y/n]: " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestScripted(t *testing.T) {
	s := &Scripted{Answers: []bool{false, true}}

	for i, want := range []bool{false, true, true} {
		got, err := s.Confirm("q", true)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("answer %d = %v, want %v", i, got, want)
		}
	}
	if len(s.Questions) != 3 {
		t.Errorf("recorded %d questions, want 3", len(s.Questions))
	}
}
