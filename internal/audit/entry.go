// Package audit records every command decision the worker makes.
//
// Each Entry lands in an in-memory history (served by /history), as a
// key=value line in the audit log file, and is forwarded best-effort to the
// console's collector. Lines look like:
//
//	2024-01-15T14:32:05Z COMMAND EXEC principal=42 user="ops" cmd="uptime" success=true exit=0 duration=12.0ms
//	2024-01-15T14:32:09Z SECURITY UNAUTHORIZED principal=7 user="mallory" cmd="rm -rf /"
package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/gate"
)

// EventType classifies an Entry.
type EventType string

const (
	EventExec         EventType = "EXEC"         // command ran to an exit status
	EventDeny         EventType = "DENY"         // rejected by the whitelist
	EventTimeout      EventType = "TIMEOUT"      // killed at the time bound
	EventError        EventType = "ERROR"        // could not be run
	EventUnauthorized EventType = "UNAUTHORIZED" // caller outside the authorized set
)

// Security reports whether e is a security event rather than a command outcome.
func (e EventType) Security() bool {
	return e == EventUnauthorized
}

// Entry is one immutable audit record.
type Entry struct {
	ID            string
	Timestamp     time.Time
	Type          EventType
	PrincipalID   int64
	PrincipalName string
	Command       string
	Success       bool
	ExitCode      int
	Duration      time.Duration
	Output        string
}

// NewCommandEntry records the outcome of a request that reached the gate's
// whitelist check.
func NewCommandEntry(p gate.Principal, command string, res executor.Result, at time.Time) Entry {
	return Entry{
		ID:            uuid.NewString(),
		Timestamp:     at,
		Type:          eventFor(res),
		PrincipalID:   p.ID,
		PrincipalName: p.Name,
		Command:       command,
		Success:       res.Success,
		ExitCode:      res.ExitCode,
		Duration:      res.Duration,
		Output:        res.Output,
	}
}

// NewUnauthorizedEntry records a request refused with gate.ErrUnauthorized.
func NewUnauthorizedEntry(p gate.Principal, command string, at time.Time) Entry {
	return Entry{
		ID:            uuid.NewString(),
		Timestamp:     at,
		Type:          EventUnauthorized,
		PrincipalID:   p.ID,
		PrincipalName: p.Name,
		Command:       command,
		ExitCode:      -1,
	}
}

func eventFor(res executor.Result) EventType {
	switch res.Kind {
	case executor.KindNotWhitelisted:
		return EventDeny
	case executor.KindTimeout:
		return EventTimeout
	case executor.KindExecution:
		return EventError
	}
	return EventExec
}

// Format renders e as a single audit log line.
func (e *Entry) Format() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	if e.Type.Security() {
		b.WriteString(" SECURITY ")
	} else {
		b.WriteString(" COMMAND ")
	}
	b.WriteString(string(e.Type))

	b.WriteString(" principal=")
	b.WriteString(strconv.FormatInt(e.PrincipalID, 10))
	writeOptionalField(&b, "user", e.PrincipalName)
	b.WriteString(" cmd=")
	b.WriteString(quoteValue(e.Command))

	switch e.Type {
	case EventUnauthorized:
	case EventExec:
		b.WriteString(" success=")
		b.WriteString(strconv.FormatBool(e.Success))
		b.WriteString(" exit=")
		b.WriteString(strconv.Itoa(e.ExitCode))
		b.WriteString(" duration=")
		b.WriteString(formatDuration(e.Duration))
	case EventTimeout:
		b.WriteString(" duration=")
		b.WriteString(formatDuration(e.Duration))
	default:
		writeOptionalField(&b, "reason", firstLine(e.Output))
	}

	return b.String()
}

func writeOptionalField(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString("=")
	b.WriteString(quoteValue(value))
}

func quoteValue(s string) string {
	return fmt.Sprintf("%q", s)
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}

// formatDuration formats d as "12.0ms", "2.3s" or "1m30s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
