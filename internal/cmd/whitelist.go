package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/xdg/telecommand/internal/term"
	"github.com/xdg/telecommand/internal/whitelist"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Inspect the command whitelist",
}

var whitelistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective whitelist",
	Args:  cobra.NoArgs,
	RunE:  runWhitelistShow,
}

var whitelistCheckCmd = &cobra.Command{
	Use:   "check <command>...",
	Short: "Report whether a command would be allowed",
	Long: `Report whether a command would pass the whitelist. Only the first word is
checked, exactly as the worker does. Exits 1 when the command is denied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWhitelistCheck,
}

func init() {
	whitelistCmd.AddCommand(whitelistShowCmd)
	whitelistCmd.AddCommand(whitelistCheckCmd)
	rootCmd.AddCommand(whitelistCmd)
}

func runWhitelistShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	p := cfg.Policy()
	switch {
	case !p.Enabled:
		term.Println("Whitelist: disabled (all commands allowed)")
	case p.AllowsAll():
		term.Println("Whitelist: enabled, wildcard (all commands allowed)")
	case len(p.Allowed) == 0:
		term.Println("Whitelist: enabled, no commands allowed")
	default:
		term.Println("Whitelist: enabled")
		for _, c := range p.Allowed {
			term.Printf("  %s\n", c)
		}
	}
	return nil
}

func runWhitelistCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	command := strings.Join(args, " ")
	token := whitelist.LeadingToken(command)
	if whitelist.Evaluate(cfg.Policy(), command) {
		term.Printf("allowed: %q\n", token)
		return nil
	}
	term.Printf("denied: %q is not in the allowed list\n", token)
	return NewExitCodeError(1)
}
