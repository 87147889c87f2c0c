package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xdg/telecommand/internal/audit"
	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/executor"
	"github.com/xdg/telecommand/internal/gate"
	"github.com/xdg/telecommand/internal/whitelist"
)

const chatID = 1000

var (
	alice   = gate.Principal{ID: 42, Name: "alice"}
	mallory = gate.Principal{ID: 7, Name: "mallory"}
)

type sent struct {
	ChatID    int64
	MessageID int64
	Reply     Reply
}

type answer struct {
	ID    string
	Text  string
	Alert bool
}

type fakeResponder struct {
	mu      sync.Mutex
	nextID  int64
	sends   []sent
	edits   []sent
	answers []answer
	sendErr error
}

func (f *fakeResponder) Send(_ context.Context, chatID int64, r Reply) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, sent{ChatID: chatID, MessageID: f.nextID, Reply: r})
	return f.nextID, nil
}

func (f *fakeResponder) Edit(_ context.Context, chatID, messageID int64, r Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sent{ChatID: chatID, MessageID: messageID, Reply: r})
	return nil
}

func (f *fakeResponder) Answer(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{ID: id, Text: text, Alert: alert})
	return nil
}

func (f *fakeResponder) lastSend(t *testing.T) Reply {
	t.Helper()
	if len(f.sends) == 0 {
		t.Fatal("no message sent")
	}
	return f.sends[len(f.sends)-1].Reply
}

// scriptRunner answers commands from a table and records what it ran.
type scriptRunner struct {
	mu      sync.Mutex
	results map[string]executor.Result
	ran     []string
}

func (r *scriptRunner) Run(_ context.Context, command string, _ time.Duration) executor.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, command)
	if res, ok := r.results[command]; ok {
		return res
	}
	return executor.Result{Success: true, Output: "ran " + command, Duration: time.Millisecond}
}

type fixture struct {
	bot    *Bot
	out    *fakeResponder
	runner *scriptRunner
	sink   *audit.Sink
	gate   *gate.Gate
}

func newFixture(t *testing.T, policy whitelist.Policy) *fixture {
	t.Helper()
	old := clog.ReplaceGlobal(clog.TestLogger(io.Discard))
	t.Cleanup(func() { clog.ReplaceGlobal(old) })

	runner := &scriptRunner{results: map[string]executor.Result{}}
	g := gate.New([]int64{alice.ID}, policy, runner, time.Second)
	sink := audit.NewSink(audit.Options{})
	t.Cleanup(sink.Close)
	out := &fakeResponder{}
	now := func() time.Time { return time.Date(2024, 1, 15, 14, 32, 5, 0, time.UTC) }
	return &fixture{
		bot:    New(g, sink, out, WithOS("linux"), WithClock(now)),
		out:    out,
		runner: runner,
		sink:   sink,
		gate:   g,
	}
}

func (f *fixture) handle(t *testing.T, u Update) {
	t.Helper()
	if u.ChatID == 0 {
		u.ChatID = chatID
	}
	if err := f.bot.Handle(context.Background(), u); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

var allowUptime = whitelist.Policy{Enabled: true, Allowed: []string{"uptime", "ls"}}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text      string
		name      string
		args      string
		isCommand bool
	}{
		{"/exec ls -la", "exec", "ls -la", true},
		{"/exec@telecommand_bot uptime", "exec", "uptime", true},
		{"/EXEC uptime", "exec", "uptime", true},
		{"/exec   echo 'a  b'  ", "exec", "echo 'a  b'", true},
		{"/exec\nuptime", "exec", "uptime", true},
		{"/help", "help", "", true},
		{"  /status", "status", "", true},
		{"hello", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.text)
		if name != tt.name || args != tt.args || ok != tt.isCommand {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.text, name, args, ok, tt.name, tt.args, tt.isCommand)
		}
	}
}

func TestStartShowsPrincipal(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: mallory, Text: "/start"})

	got := f.out.lastSend(t).Text
	if !strings.Contains(got, "`7`") || !strings.Contains(got, "@mallory") {
		t.Errorf("welcome = %q, want user id and name", got)
	}
	if !strings.Contains(got, "❌ You are NOT authorized. Contact the administrator.") {
		t.Errorf("welcome = %q, want the not-authorized state", got)
	}
	if strings.Contains(got, "✅") {
		t.Errorf("welcome = %q claims an unauthorized user is authorized", got)
	}

	f.handle(t, Update{From: alice, Text: "/start"})
	got = f.out.lastSend(t).Text
	if !strings.Contains(got, "`42`") || !strings.Contains(got, "✅ You are authorized") {
		t.Errorf("welcome = %q, want the authorized state", got)
	}
	if strings.Contains(got, "NOT authorized") {
		t.Errorf("welcome = %q denies an authorized user", got)
	}
}

func TestStartWithoutUsername(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: gate.Principal{ID: 9}, Text: "/start"})

	if got := f.out.lastSend(t).Text; !strings.Contains(got, "@N/A") {
		t.Errorf("welcome = %q, want @N/A", got)
	}
}

func TestHelpIsPublic(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: mallory, Text: "/help"})

	if got := f.out.lastSend(t).Text; got != helpText {
		t.Errorf("help = %q", got)
	}
	if f.sink.Len() != 0 {
		t.Errorf("audit entries = %d, want 0", f.sink.Len())
	}
}

func TestExecAllowed(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.runner.results["uptime"] = executor.Result{Success: true, Output: "up 3 days"}

	f.handle(t, Update{From: alice, Text: "/exec uptime"})

	if len(f.out.sends) != 1 || !strings.Contains(f.out.sends[0].Reply.Text, "Executing command") {
		t.Fatalf("sends = %+v, want one pending message", f.out.sends)
	}
	if len(f.out.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(f.out.edits))
	}
	edit := f.out.edits[0]
	if edit.MessageID != f.out.sends[0].MessageID {
		t.Errorf("edited message %d, want %d", edit.MessageID, f.out.sends[0].MessageID)
	}
	want := "✅ *Command Result:*\n\n```\nup 3 days\n```"
	if edit.Reply.Text != want {
		t.Errorf("result = %q, want %q", edit.Reply.Text, want)
	}

	entries := f.sink.Recent(1)
	if len(entries) != 1 || entries[0].Type != audit.EventExec || entries[0].Command != "uptime" || !entries[0].Success {
		t.Errorf("audit = %+v", entries)
	}
}

func TestExecDenied(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Text: "/exec rm -rf /tmp/x"})

	if len(f.runner.ran) != 0 {
		t.Errorf("runner ran %v, want nothing", f.runner.ran)
	}
	got := f.out.edits[0].Reply.Text
	if !strings.HasPrefix(got, "❌") || !strings.Contains(got, "Command 'rm' is not in the allowed list.") {
		t.Errorf("result = %q", got)
	}

	entries := f.sink.Recent(1)
	if len(entries) != 1 || entries[0].Type != audit.EventDeny || entries[0].Success {
		t.Errorf("audit = %+v, want one failed DENY entry", entries)
	}
}

func TestExecUsage(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Text: "/exec   "})

	if got := f.out.lastSend(t).Text; got != execUsage {
		t.Errorf("reply = %q, want usage", got)
	}
	if f.sink.Len() != 0 {
		t.Errorf("audit entries = %d, want 0", f.sink.Len())
	}
}

func TestExecUnauthorized(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: mallory, Text: "/exec uptime"})

	if len(f.runner.ran) != 0 {
		t.Errorf("runner ran %v", f.runner.ran)
	}
	got := f.out.lastSend(t).Text
	if !strings.Contains(got, "Unauthorized access attempt") || !strings.Contains(got, "User ID: 7") {
		t.Errorf("reply = %q", got)
	}
	entries := f.sink.Recent(1)
	if len(entries) != 1 || entries[0].Type != audit.EventUnauthorized || entries[0].PrincipalID != mallory.ID {
		t.Errorf("audit = %+v, want security entry", entries)
	}
}

func TestExecTruncatesLongOutput(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.runner.results["ls"] = executor.Result{Success: true, Output: strings.Repeat("x", ReplyLimit+500)}

	f.handle(t, Update{From: alice, Text: "/exec ls"})

	got := f.out.edits[0].Reply.Text
	if !strings.Contains(got, strings.Repeat("x", ReplyLimit)+replyTruncated) {
		t.Error("output not truncated at ReplyLimit with marker")
	}
	if strings.Contains(got, strings.Repeat("x", ReplyLimit+1)) {
		t.Error("output exceeds ReplyLimit")
	}
	// The history keeps the full output.
	if e := f.sink.Recent(1)[0]; len(e.Output) != ReplyLimit+500 {
		t.Errorf("audit output length = %d", len(e.Output))
	}
}

func TestExecFallsBackToSendWhenPendingFails(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.out.sendErr = errors.New("rate limited")

	err := f.bot.Handle(context.Background(), Update{ChatID: chatID, From: alice, Text: "/exec uptime"})
	if err == nil {
		t.Fatal("Handle succeeded with a failing responder")
	}
	if len(f.out.edits) != 0 {
		t.Errorf("edits = %d, want 0", len(f.out.edits))
	}
	if f.sink.Len() != 1 {
		t.Errorf("audit entries = %d, want 1", f.sink.Len())
	}
}

func TestStatusReportsWhitelistedFields(t *testing.T) {
	f := newFixture(t, whitelist.Policy{Enabled: true, Allowed: []string{"hostname", "uptime"}})
	f.runner.results["hostname"] = executor.Result{Success: true, Output: "box\n"}
	f.runner.results["uptime -p"] = executor.Result{Success: true, Output: "up 2 hours"}

	f.handle(t, Update{From: alice, Text: "/status"})

	want := "📊 *System Status*\n\n*🖥️ Hostname:* `box`\n*⏱️ Uptime:* `up 2 hours`"
	if got := f.out.lastSend(t).Text; got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
	if got := strings.Join(f.runner.ran, ","); got != "hostname,uptime -p" {
		t.Errorf("runner ran %q", got)
	}
	entries := f.sink.Recent(HistoryLimit)
	if len(entries) != 1 || entries[0].Command != "/status" || !entries[0].Success {
		t.Errorf("audit = %+v, want one /status entry", entries)
	}
}

func TestStatusTruncatesFields(t *testing.T) {
	f := newFixture(t, whitelist.Policy{})
	f.runner.results["hostname"] = executor.Result{Success: true, Output: strings.Repeat("h", 300)}

	f.handle(t, Update{From: alice, Text: "/status"})

	got := f.out.lastSend(t).Text
	if !strings.Contains(got, "`"+strings.Repeat("h", StatusFieldLimit)+statusTruncated+"`") {
		t.Errorf("hostname field not truncated: %q", got)
	}
}

func TestStatusWithNothingAllowed(t *testing.T) {
	f := newFixture(t, whitelist.Policy{Enabled: true})
	f.handle(t, Update{From: alice, Text: "/status"})

	if got := f.out.lastSend(t).Text; !strings.Contains(got, "No status information available.") {
		t.Errorf("status = %q", got)
	}
	if e := f.sink.Recent(1)[0]; e.Success {
		t.Error("empty status recorded as success")
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		name   string
		policy whitelist.Policy
		want   string
	}{
		{"disabled", whitelist.Policy{}, "Whitelist is disabled"},
		{"wildcard", whitelist.Policy{Enabled: true, Allowed: []string{"*"}}, "contains `*`"},
		{"empty", whitelist.Policy{Enabled: true}, "No commands are allowed."},
		{"list", allowUptime, "• `uptime`\n• `ls`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.policy)
			f.handle(t, Update{From: alice, Text: "/allowed"})
			if got := f.out.lastSend(t).Text; !strings.Contains(got, tt.want) {
				t.Errorf("allowed = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Text: "/history"})

	if got := f.out.lastSend(t).Text; got != noHistory {
		t.Errorf("history = %q", got)
	}
}

func TestHistoryShowsLastTen(t *testing.T) {
	f := newFixture(t, allowUptime)
	for i := 0; i < 12; i++ {
		f.handle(t, Update{From: alice, Text: "/exec uptime"})
	}
	f.handle(t, Update{From: mallory, Text: "/exec ls"})
	f.handle(t, Update{From: alice, Text: "/history"})

	got := f.out.lastSend(t).Text
	if n := strings.Count(got, "14:32:05"); n != HistoryLimit {
		t.Errorf("history shows %d entries, want %d:\n%s", n, HistoryLimit, got)
	}
	if !strings.Contains(got, "🚫 14:32:05 - @mallory\n`/exec ls`") {
		t.Errorf("history missing security entry:\n%s", got)
	}
	if !strings.HasPrefix(got, "📝 *Command History (Last 10):*") {
		t.Errorf("history header = %q", got)
	}
}

func TestSysMenu(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Text: "/sys"})

	r := f.out.lastSend(t)
	if r.Text != sysMenuHeader {
		t.Errorf("menu text = %q", r.Text)
	}
	if len(r.Keyboard) != 3 || len(r.Keyboard[2]) != 2 || r.Keyboard[2][1].Data != refreshData {
		t.Errorf("keyboard = %+v", r.Keyboard)
	}
}

func TestSysCallbackRunsCommand(t *testing.T) {
	f := newFixture(t, whitelist.Policy{Enabled: true, Allowed: []string{"df"}})
	f.runner.results["df -h"] = executor.Result{Success: true, Output: "  /dev/sda1 50%  \n"}

	f.handle(t, Update{From: alice, Callback: &Callback{ID: "cb1", Data: "sys_disk", MessageID: 5}})

	if len(f.out.answers) != 1 || f.out.answers[0].Alert {
		t.Errorf("answers = %+v, want one silent acknowledgement", f.out.answers)
	}
	if len(f.out.edits) != 1 || f.out.edits[0].MessageID != 5 {
		t.Fatalf("edits = %+v", f.out.edits)
	}
	want := "*💾 Disk*\n\n```\n/dev/sda1 50%\n```"
	if got := f.out.edits[0].Reply.Text; got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
	if e := f.sink.Recent(1)[0]; e.Command != "df -h" {
		t.Errorf("audit command = %q", e.Command)
	}
}

func TestSysCallbackRefreshRunsNothing(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Callback: &Callback{ID: "cb1", Data: refreshData, MessageID: 5}})

	if len(f.runner.ran) != 0 {
		t.Errorf("runner ran %v", f.runner.ran)
	}
	if len(f.out.edits) != 1 || f.out.edits[0].Reply.Keyboard == nil {
		t.Errorf("edits = %+v, want menu re-rendered", f.out.edits)
	}
}

func TestSysCallbackUnauthorized(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: mallory, Callback: &Callback{ID: "cb1", Data: "sys_cpu", MessageID: 5}})

	if len(f.out.answers) != 1 || !f.out.answers[0].Alert || f.out.answers[0].Text != callbackForbidden {
		t.Errorf("answers = %+v, want alert", f.out.answers)
	}
	if len(f.runner.ran) != 0 || len(f.out.edits) != 0 {
		t.Error("unauthorized callback had effects")
	}
	if e := f.sink.Recent(1)[0]; e.Type != audit.EventUnauthorized {
		t.Errorf("audit type = %s", e.Type)
	}
}

func TestSysCallbackUnknownIgnored(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Callback: &Callback{ID: "cb1", Data: "sys_reboot", MessageID: 5}})

	if len(f.runner.ran) != 0 || len(f.out.edits) != 0 {
		t.Error("unknown callback had effects")
	}
}

func TestPlainText(t *testing.T) {
	f := newFixture(t, allowUptime)
	f.handle(t, Update{From: alice, Text: "hello"})
	if got := f.out.lastSend(t).Text; got != plainTextHint {
		t.Errorf("reply = %q", got)
	}

	f.handle(t, Update{From: alice, Text: "/reboot"})
	if got := f.out.lastSend(t).Text; got != unknownCommand {
		t.Errorf("reply = %q", got)
	}

	f.handle(t, Update{From: mallory, Text: "hello"})
	if got := f.out.lastSend(t).Text; !strings.Contains(got, "not authorized") || !strings.Contains(got, "`7`") {
		t.Errorf("reply = %q", got)
	}
}

func TestSystemTables(t *testing.T) {
	if a, ok := findSysAction("darwin", "sys_memory"); !ok || a.Command != "vm_stat" {
		t.Errorf("darwin sys_memory = %+v", a)
	}
	if a, ok := findSysAction("linux", "sys_memory"); !ok || a.Command != "free -h" {
		t.Errorf("linux sys_memory = %+v", a)
	}
	for _, goos := range []string{"linux", "darwin"} {
		defaults := whitelist.Policy{Enabled: true, Allowed: config.DefaultAllowedCommands}
		for _, f := range statusFields(goos) {
			if !whitelist.Evaluate(defaults, f.Command) {
				t.Errorf("%s status command %q not in default allow list", goos, f.Command)
			}
		}
		for _, a := range sysActions(goos) {
			if a.Command != "" && !whitelist.Evaluate(defaults, a.Command) {
				t.Errorf("%s sys command %q not in default allow list", goos, a.Command)
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10, "..."); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abcdef", 3, "~"); got != "abc~" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("héllo wörld", 4, "…"); got != "héll…" {
		t.Errorf("Truncate = %q, want rune-safe cut", got)
	}
}
