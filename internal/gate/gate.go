// Package gate is the single entry point from the chat front end to the
// shell. It checks the caller against the authorized set, then the
// command against the whitelist, and only then runs it.
//
// The gate writes no audit records. Callers record the outcome, and record
// ErrUnauthorized as a security event distinct from a failed command.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/whitelist"
)

// ErrUnauthorized is returned for principals outside the authorized set.
// The runner is never invoked in that case.
var ErrUnauthorized = errors.New("principal is not authorized")

// Principal identifies a remote caller.
type Principal struct {
	ID   int64
	Name string
}

// DisplayName is Name, or "N/A" when the caller has none.
func (p Principal) DisplayName() string {
	if p.Name == "" {
		return "N/A"
	}
	return p.Name
}

// Request is one attempt to run a command. Retries are new requests.
type Request struct {
	Principal   Principal
	Command     string
	RequestedAt time.Time
}

// Gate authorizes requests and runs the ones that pass.
// It is safe for concurrent use.
type Gate struct {
	authorized map[int64]struct{}
	policy     atomic.Pointer[whitelist.Policy]
	runner     executor.Runner
	timeout    time.Duration
}

// New returns a Gate that runs allowed commands on runner with timeout.
func New(authorized []int64, policy whitelist.Policy, runner executor.Runner, timeout time.Duration) *Gate {
	g := &Gate{
		authorized: make(map[int64]struct{}, len(authorized)),
		runner:     runner,
		timeout:    timeout,
	}
	for _, id := range authorized {
		g.authorized[id] = struct{}{}
	}
	g.SetPolicy(policy)
	return g
}

// Authorized reports whether p may use the gate.
func (g *Gate) Authorized(p Principal) bool {
	_, ok := g.authorized[p.ID]
	return ok
}

// Policy returns the policy currently in force.
func (g *Gate) Policy() whitelist.Policy {
	return *g.policy.Load()
}

// SetPolicy replaces the whitelist. Decisions already in flight keep the
// policy they loaded.
func (g *Gate) SetPolicy(p whitelist.Policy) {
	c := p.Clone()
	g.policy.Store(&c)
}

// Handle authorizes req and, if it passes the whitelist, runs it.
func (g *Gate) Handle(ctx context.Context, req Request) (executor.Result, error) {
	if !g.Authorized(req.Principal) {
		return executor.Result{}, fmt.Errorf("principal %d: %w", req.Principal.ID, ErrUnauthorized)
	}

	policy := g.policy.Load()
	if !whitelist.Evaluate(*policy, req.Command) {
		token := whitelist.LeadingToken(req.Command)
		return executor.Denied(
			fmt.Sprintf("Command '%s' is not in the allowed list.", token),
			"command not whitelisted",
		), nil
	}

	return g.runner.Run(ctx, req.Command, g.timeout), nil
}
