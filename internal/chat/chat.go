// Package chat turns chat updates into gate requests and formats the
// replies. It owns argument parsing, Markdown presentation and output
// truncation; the gate and executor below it see plain strings.
//
// Updates are handled one at a time. The executor blocks for up to the
// command timeout, and a Bot serializes every update behind one mutex so
// two commands never run concurrently on behalf of chat users.
package chat

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/xdg/telecommand/internal/audit"
	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/gate"
)

// Update is one inbound chat event: a text message or a button press.
type Update struct {
	ID        int64
	ChatID    int64
	MessageID int64
	From      gate.Principal
	Text      string
	Callback  *Callback
}

// Callback is an inline keyboard button press.
type Callback struct {
	ID        string
	Data      string
	MessageID int64 // message carrying the keyboard
}

// Button is an inline keyboard button.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Reply is an outbound message.
type Reply struct {
	Text     string
	Markdown bool
	Keyboard [][]Button
}

// Responder delivers replies to the chat service.
type Responder interface {
	// Send posts a new message and returns its ID.
	Send(ctx context.Context, chatID int64, r Reply) (int64, error)
	// Edit replaces the content of an earlier message.
	Edit(ctx context.Context, chatID, messageID int64, r Reply) error
	// Answer acknowledges a button press, optionally as a modal alert.
	Answer(ctx context.Context, callbackID, text string, alert bool) error
}

// Bot dispatches updates.
type Bot struct {
	mu    sync.Mutex
	gate  *gate.Gate
	audit *audit.Sink
	out   Responder
	goos  string
	now   func() time.Time
}

// Option configures a Bot.
type Option func(*Bot)

// WithOS selects the /status and /sys command tables. The default is the
// running system.
func WithOS(goos string) Option {
	return func(b *Bot) { b.goos = goos }
}

// WithClock replaces time.Now for request and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// New returns a Bot that runs commands through g, records them in sink and
// replies through out.
func New(g *gate.Gate, sink *audit.Sink, out Responder, opts ...Option) *Bot {
	b := &Bot{
		gate:  g,
		audit: sink,
		out:   out,
		goos:  runtime.GOOS,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle processes u to completion. Errors are delivery failures; command
// failures are reported to the user, not returned.
func (b *Bot) Handle(ctx context.Context, u Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.Callback != nil {
		return b.handleCallback(ctx, u)
	}

	name, args, isCommand := parseCommand(u.Text)
	if !isCommand {
		return b.handleText(ctx, u)
	}

	switch name {
	case "start":
		return b.handleStart(ctx, u)
	case "help":
		return b.send(ctx, u.ChatID, Reply{Text: helpText, Markdown: true})
	case "exec":
		return b.handleExec(ctx, u, args)
	case "status":
		return b.handleStatus(ctx, u)
	case "allowed":
		return b.handleAllowed(ctx, u)
	case "history":
		return b.handleHistory(ctx, u)
	case "sys":
		return b.handleSysMenu(ctx, u)
	}
	return b.handleText(ctx, u)
}

// parseCommand splits "/exec@bot ls -la" into ("exec", "ls -la", true).
// Arguments keep their inner whitespace so shell quoting survives.
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	name, _, _ = strings.Cut(head[1:], "@")
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

// authorize reports whether u's sender may use protected commands. Refused
// senders are told so and the attempt is recorded as a security event.
func (b *Bot) authorize(ctx context.Context, u Update) (bool, error) {
	if b.gate.Authorized(u.From) {
		return true, nil
	}
	b.recordUnauthorized(u.From, u.Text)
	return false, b.send(ctx, u.ChatID, Reply{Text: unauthorizedAttempt(u.From)})
}

func (b *Bot) recordUnauthorized(p gate.Principal, command string) {
	clog.Warn("chat: unauthorized access attempt by %d (@%s): %q", p.ID, p.DisplayName(), command)
	b.audit.Record(audit.NewUnauthorizedEntry(p, command, b.now()))
}

// run sends one command through the gate and records the outcome.
func (b *Bot) run(ctx context.Context, p gate.Principal, command string) (executor.Result, error) {
	res, err := b.gate.Handle(ctx, gate.Request{Principal: p, Command: command, RequestedAt: b.now()})
	if errors.Is(err, gate.ErrUnauthorized) {
		b.recordUnauthorized(p, command)
		return executor.Result{}, err
	}
	b.audit.Record(audit.NewCommandEntry(p, command, res, b.now()))
	return res, nil
}

func (b *Bot) send(ctx context.Context, chatID int64, r Reply) error {
	_, err := b.out.Send(ctx, chatID, r)
	return err
}
