// Package whitelist decides whether a command string may run.
//
// The policy is a prefix-allow list keyed on the first whitespace-delimited
// word of the command. It is NOT a sandbox: once the leading word is allowed
// the whole string is handed to a shell, so "ls; rm -rf ~" passes a policy
// that allows "ls". Matching is exact string equality with no globbing,
// regular expressions, or path normalization ("/bin/ls" does not match "ls").
package whitelist

import (
	"slices"
	"strings"
)

// Wildcard in the allowed list permits every command.
const Wildcard = "*"

// Policy is an immutable allow decision table. Callers replace a Policy
// wholesale rather than editing Allowed in place.
type Policy struct {
	Enabled bool
	Allowed []string
}

// LeadingToken returns the first whitespace-delimited word of command, or
// "" when command is blank.
func LeadingToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// AllowsAll reports whether p lets any command through.
func (p Policy) AllowsAll() bool {
	return !p.Enabled || slices.Contains(p.Allowed, Wildcard)
}

// Evaluate reports whether command passes p.
func Evaluate(p Policy, command string) bool {
	if p.AllowsAll() {
		return true
	}
	token := LeadingToken(command)
	if token == "" {
		return false
	}
	return slices.Contains(p.Allowed, token)
}

// Clone returns a copy of p whose Allowed slice does not alias p's.
func (p Policy) Clone() Policy {
	return Policy{Enabled: p.Enabled, Allowed: slices.Clone(p.Allowed)}
}
