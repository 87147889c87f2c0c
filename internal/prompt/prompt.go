// Package prompt asks the operator for confirmation on the terminal, with a
// scripted implementation for tests.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer asks a yes/no question.
type Confirmer interface {
	// Confirm shows question and returns the answer. An empty answer
	// returns defaultYes.
	Confirm(question string, defaultYes bool) (bool, error)
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Terminal reads answers from In and writes questions to Out.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// NewTerminal returns a Terminal confirmer.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out}
}

// Confirm accepts y/yes and n/no in any case.
func (t *Terminal) Confirm(question string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	_, _ = fmt.Fprintf(t.Out, "%s %s: ", question, hint)

	line, err := bufio.NewReader(t.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid answer %q: expected y or n", strings.TrimSpace(line))
	}
}

// Scripted returns canned answers in order and records the questions.
// Once the answers run out it returns the default.
type Scripted struct {
	Answers   []bool
	Questions []string
}

// Confirm implements Confirmer.
func (s *Scripted) Confirm(question string, defaultYes bool) (bool, error) {
	s.Questions = append(s.Questions, question)
	if len(s.Answers) == 0 {
		return defaultYes, nil
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}
