// Package term is the CLI's user-facing output. Operational logging goes
// through internal/clog instead.
//
// Print, Printf, Println and Table write to stdout and are suppressed by
// --silent. Warn and Error write to stderr and are never suppressed.
package term

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	silent bool
)

// SetSilent toggles suppression of stdout output.
func SetSilent(s bool) {
	mu.Lock()
	defer mu.Unlock()
	silent = s
}

// SetOutput redirects stdout output. nil restores os.Stdout.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	stdout = w
}

// SetErrOutput redirects stderr output. nil restores os.Stderr.
func SetErrOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	stderr = w
}

func out(write func(io.Writer)) {
	mu.Lock()
	defer mu.Unlock()
	if silent {
		return
	}
	write(stdout)
}

func Print(a ...any) {
	out(func(w io.Writer) { _, _ = fmt.Fprint(w, a...) })
}

func Printf(format string, a ...any) {
	out(func(w io.Writer) { _, _ = fmt.Fprintf(w, format, a...) })
}

func Println(a ...any) {
	out(func(w io.Writer) { _, _ = fmt.Fprintln(w, a...) })
}

// Table prints rows as tab-aligned columns. The first row is the header.
func Table(rows [][]string) {
	out(func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, row := range rows {
			_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		_ = tw.Flush()
	})
}

// Warn writes "Warning: ..." to stderr.
func Warn(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = fmt.Fprintf(stderr, "Warning: %s\n", fmt.Sprintf(format, a...))
}

// Error writes "Error: ..." to stderr.
func Error(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = fmt.Fprintf(stderr, "Error: %s\n", fmt.Sprintf(format, a...))
}

// Reset restores os.Stdout, os.Stderr and non-silent mode.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	stdout = os.Stdout
	stderr = os.Stderr
	silent = false
}

// Discard drops all output.
func Discard() {
	mu.Lock()
	defer mu.Unlock()
	stdout = io.Discard
	stderr = io.Discard
}
