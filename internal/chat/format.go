package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xdg/telecommand/internal/gate"
)

// Output budgets, in runes. Each is independent of the others.
const (
	ReplyLimit       = 4000 // /exec results, below the chat service's message cap
	MenuLimit        = 3500 // /sys results, leaving room for the menu header
	StatusFieldLimit = 200  // each /status field
)

// Truncation markers appended to clipped output.
const (
	replyTruncated  = "\n\n... (output truncated)"
	menuTruncated   = "\n... (truncated)"
	statusTruncated = "... (truncated)"
)

// HistoryLimit is the number of entries /history shows.
const HistoryLimit = 10

// Truncate returns s clipped to limit runes with marker appended, or s
// unchanged if it fits.
func Truncate(s string, limit int, marker string) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + marker
		}
		n++
	}
	return s
}

const helpText = `📚 *Available Commands:*

*Basic Commands:*
/start - Welcome message
/help - Show this help message
/status - Show system status

*Command Execution:*
/exec <command> - Execute a shell command
Example: ` + "`/exec ls -la`" + `

*Information:*
/allowed - Show allowed commands
/history - Show command history

*Quick Commands:*
/sys - System information menu

⚠️ *Security Notes:*
• Only authorized users can execute commands
• Some commands may be restricted
• All commands are logged`

func welcomeText(p gate.Principal, authorized bool) string {
	state := "❌ You are NOT authorized. Contact the administrator."
	if authorized {
		state = "✅ You are authorized"
	}
	return fmt.Sprintf(`🤖 *Welcome to Remote Command Bot!*

This bot allows you to execute commands on your PC remotely.

*Your User ID:* `+"`%d`"+`
*Username:* @%s

%s

Use /help to see available commands.`, p.ID, p.DisplayName(), state)
}

func unauthorizedAttempt(p gate.Principal) string {
	return fmt.Sprintf("❌ Unauthorized access attempt!\nUser ID: %d\nUsername: @%s\n\nThis incident has been logged.",
		p.ID, p.DisplayName())
}

func notAuthorizedText(p gate.Principal) string {
	return fmt.Sprintf("❌ You are not authorized to use this bot.\nYour User ID: `%d`\n\nPlease contact the administrator to get access.", p.ID)
}

const (
	execUsage         = "❌ Please provide a command to execute.\nExample: `/exec ls -la`"
	unknownCommand    = "Unknown command. Use /help to see available commands."
	plainTextHint     = "Use /help to see available commands."
	noHistory         = "📝 No command history yet."
	callbackForbidden = "❌ Unauthorized!"
	sysMenuHeader     = "🖥️ *System Information Menu*\n\nSelect an option:"
)

func execPending(command string) string {
	return "⏳ Executing command...\n`" + command + "`"
}

func resultIcon(success bool) string {
	if success {
		return "✅"
	}
	return "❌"
}

func execResultText(success bool, output string) string {
	return fmt.Sprintf("%s *Command Result:*\n\n```\n%s\n```", resultIcon(success), Truncate(output, ReplyLimit, replyTruncated))
}

func sysResultText(title, output string) string {
	return fmt.Sprintf("*%s*\n\n```\n%s\n```", title, Truncate(strings.TrimSpace(output), MenuLimit, menuTruncated))
}
