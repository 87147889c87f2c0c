package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xdg/telecommand/internal/audit"
	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/gate"
)

func (b *Bot) handleStart(ctx context.Context, u Update) error {
	return b.send(ctx, u.ChatID, Reply{Text: welcomeText(u.From, b.gate.Authorized(u.From)), Markdown: true})
}

func (b *Bot) handleText(ctx context.Context, u Update) error {
	if !b.gate.Authorized(u.From) {
		return b.send(ctx, u.ChatID, Reply{Text: notAuthorizedText(u.From), Markdown: true})
	}
	if strings.HasPrefix(strings.TrimSpace(u.Text), "/") {
		return b.send(ctx, u.ChatID, Reply{Text: unknownCommand})
	}
	return b.send(ctx, u.ChatID, Reply{Text: plainTextHint})
}

func (b *Bot) handleExec(ctx context.Context, u Update, command string) error {
	if ok, err := b.authorize(ctx, u); !ok {
		return err
	}
	if command == "" {
		return b.send(ctx, u.ChatID, Reply{Text: execUsage, Markdown: true})
	}

	clog.Info("chat: %d (@%s) exec %q", u.From.ID, u.From.DisplayName(), command)
	pending, sendErr := b.out.Send(ctx, u.ChatID, Reply{Text: execPending(command), Markdown: true})
	if sendErr != nil {
		clog.Debug("chat: pending reply failed: %v", sendErr)
	}

	res, err := b.run(ctx, u.From, command)
	if errors.Is(err, gate.ErrUnauthorized) {
		return b.send(ctx, u.ChatID, Reply{Text: unauthorizedAttempt(u.From)})
	}

	reply := Reply{Text: execResultText(res.Success, res.Output), Markdown: true}
	if sendErr == nil {
		if err := b.out.Edit(ctx, u.ChatID, pending, reply); err == nil {
			return nil
		}
	}
	return b.send(ctx, u.ChatID, reply)
}

// handleStatus runs each status field through the gate and reports the ones
// that succeed. The report is recorded as a single audit entry.
func (b *Bot) handleStatus(ctx context.Context, u Update) error {
	if ok, err := b.authorize(ctx, u); !ok {
		return err
	}

	var lines []string
	var elapsed time.Duration
	for _, f := range statusFields(b.goos) {
		res, err := b.gate.Handle(ctx, gate.Request{Principal: u.From, Command: f.Command, RequestedAt: b.now()})
		if err != nil {
			return err
		}
		elapsed += res.Duration
		if !res.Success {
			clog.Debug("chat: status field %q skipped: %s", f.Command, res.Output)
			continue
		}
		value := Truncate(strings.TrimSpace(res.Output), StatusFieldLimit, statusTruncated)
		lines = append(lines, fmt.Sprintf("*%s:* `%s`", f.Label, value))
	}

	text := "📊 *System Status*\n\n"
	if len(lines) == 0 {
		text += "No status information available."
	} else {
		text += strings.Join(lines, "\n")
	}

	summary := executor.Result{Success: len(lines) > 0, Output: text, Duration: elapsed}
	if !summary.Success {
		summary.ExitCode = -1
	}
	b.audit.Record(audit.NewCommandEntry(u.From, "/status", summary, b.now()))

	return b.send(ctx, u.ChatID, Reply{Text: text, Markdown: true})
}

func (b *Bot) handleAllowed(ctx context.Context, u Update) error {
	if ok, err := b.authorize(ctx, u); !ok {
		return err
	}

	policy := b.gate.Policy()
	var text string
	switch {
	case !policy.Enabled:
		text = "✅ *Allowed Commands:* ALL\n\nWhitelist is disabled. All commands are allowed."
	case policy.AllowsAll():
		text = "✅ *Allowed Commands:* ALL\n\nThe allowed list contains `*`. All commands are allowed."
	case len(policy.Allowed) == 0:
		text = "✅ *Allowed Commands:*\n\nNo commands are allowed."
	default:
		var sb strings.Builder
		sb.WriteString("✅ *Allowed Commands:*\n\n")
		for _, c := range policy.Allowed {
			sb.WriteString("• `" + c + "`\n")
		}
		text = strings.TrimSuffix(sb.String(), "\n")
	}
	return b.send(ctx, u.ChatID, Reply{Text: text, Markdown: true})
}

func (b *Bot) handleHistory(ctx context.Context, u Update) error {
	if ok, err := b.authorize(ctx, u); !ok {
		return err
	}

	entries := b.audit.Recent(HistoryLimit)
	if len(entries) == 0 {
		return b.send(ctx, u.ChatID, Reply{Text: noHistory})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 *Command History (Last %d):*\n\n", HistoryLimit)
	for _, e := range entries {
		icon := resultIcon(e.Success)
		if e.Type.Security() {
			icon = "🚫"
		}
		name := e.PrincipalName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&sb, "%s %s - @%s\n`%s`\n\n", icon, e.Timestamp.Format("15:04:05"), name, e.Command)
	}
	return b.send(ctx, u.ChatID, Reply{Text: strings.TrimSuffix(sb.String(), "\n\n"), Markdown: true})
}

func (b *Bot) handleSysMenu(ctx context.Context, u Update) error {
	if ok, err := b.authorize(ctx, u); !ok {
		return err
	}
	return b.send(ctx, u.ChatID, Reply{Text: sysMenuHeader, Markdown: true, Keyboard: sysKeyboard(b.goos)})
}

func (b *Bot) handleCallback(ctx context.Context, u Update) error {
	cb := u.Callback
	if !b.gate.Authorized(u.From) {
		b.recordUnauthorized(u.From, cb.Data)
		return b.out.Answer(ctx, cb.ID, callbackForbidden, true)
	}
	if err := b.out.Answer(ctx, cb.ID, "", false); err != nil {
		clog.Debug("chat: answering callback %s: %v", cb.ID, err)
	}

	action, ok := findSysAction(b.goos, cb.Data)
	if !ok {
		clog.Debug("chat: ignoring unknown callback %q", cb.Data)
		return nil
	}
	if action.Command == "" {
		return b.out.Edit(ctx, u.ChatID, cb.MessageID,
			Reply{Text: sysMenuHeader, Markdown: true, Keyboard: sysKeyboard(b.goos)})
	}

	res, err := b.run(ctx, u.From, action.Command)
	if errors.Is(err, gate.ErrUnauthorized) {
		return b.out.Answer(ctx, cb.ID, callbackForbidden, true)
	}
	return b.out.Edit(ctx, u.ChatID, cb.MessageID,
		Reply{Text: sysResultText(action.Title, res.Output), Markdown: true})
}
