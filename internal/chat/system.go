package chat

// statusField is one line of the /status report.
type statusField struct {
	Label   string
	Command string
}

// sysAction is one button of the /sys menu.
type sysAction struct {
	Data    string // callback data
	Label   string // button text
	Title   string // result header
	Command string // empty for actions that only re-render the menu
}

const refreshData = "sys_refresh"

// statusFields returns the /status commands for goos. Every command still
// passes through the gate and must be whitelisted to contribute a line.
func statusFields(goos string) []statusField {
	if goos == "darwin" {
		return []statusField{
			{"🖥️ Hostname", "hostname"},
			{"⏱️ Uptime", "uptime"},
			{"👤 Current User", "whoami"},
			{"💾 Disk Usage", "df -h / | tail -1"},
			{"🧠 Memory", "vm_stat | head -5"},
			{"⚙️ CPU", "sysctl -n machdep.cpu.brand_string"},
		}
	}
	return []statusField{
		{"🖥️ Hostname", "hostname"},
		{"⏱️ Uptime", "uptime -p"},
		{"👤 Current User", "whoami"},
		{"💾 Disk Usage", "df -h / | tail -1"},
		{"🧠 Memory", "free -h | grep Mem"},
		{"⚙️ CPU", "lscpu | grep 'Model name'"},
	}
}

// sysActions returns the /sys menu for goos, in display order.
func sysActions(goos string) []sysAction {
	if goos == "darwin" {
		return []sysAction{
			{"sys_cpu", "💻 CPU Info", "💻 CPU Info", "sysctl -n machdep.cpu.brand_string; sysctl -n hw.ncpu"},
			{"sys_memory", "🧠 Memory", "🧠 Memory", "vm_stat"},
			{"sys_disk", "💾 Disk", "💾 Disk", "df -h"},
			{"sys_network", "🌐 Network", "🌐 Network", "ifconfig | grep 'inet '"},
			{"sys_processes", "📊 Processes", "📊 Processes", "ps aux | head -20"},
			{refreshData, "🔄 Refresh", "", ""},
		}
	}
	return []sysAction{
		{"sys_cpu", "💻 CPU Info", "💻 CPU Info", "lscpu"},
		{"sys_memory", "🧠 Memory", "🧠 Memory", "free -h"},
		{"sys_disk", "💾 Disk", "💾 Disk", "df -h"},
		{"sys_network", "🌐 Network", "🌐 Network", "ip addr"},
		{"sys_processes", "📊 Processes", "📊 Processes", "ps aux | head -20"},
		{refreshData, "🔄 Refresh", "", ""},
	}
}

func findSysAction(goos, data string) (sysAction, bool) {
	for _, a := range sysActions(goos) {
		if a.Data == data {
			return a, true
		}
	}
	return sysAction{}, false
}

// sysKeyboard lays the menu out two buttons per row.
func sysKeyboard(goos string) [][]Button {
	actions := sysActions(goos)
	rows := make([][]Button, 0, (len(actions)+1)/2)
	for i := 0; i < len(actions); i += 2 {
		row := []Button{{Text: actions[i].Label, Data: actions[i].Data}}
		if i+1 < len(actions) {
			row = append(row, Button{Text: actions[i+1].Label, Data: actions[i+1].Data})
		}
		rows = append(rows, row)
	}
	return rows
}
