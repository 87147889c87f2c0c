package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/prompt"
	"github.com/xdg/telecommand/internal/term"
)

var (
	userNameFlag string
	userYesFlag  bool

	// confirmer overrides the terminal prompt; nil asks on stdin when it is
	// a terminal and skips confirmation otherwise.
	confirmer prompt.Confirmer
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage authorized chat users",
	Long: `Manage the chat users allowed to run commands.

Changes are written to the config file. A running worker picks them up when
it is restarted.`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List authorized users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Authorize a chat user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersAdd,
}

var usersRemoveCmd = &cobra.Command{
	Use:     "remove <user-id>",
	Aliases: []string{"rm"},
	Short:   "Revoke a chat user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUsersRemove,
}

func init() {
	usersAddCmd.Flags().StringVar(&userNameFlag, "name", "", "display name recorded with the user")
	usersRemoveCmd.Flags().BoolVarP(&userYesFlag, "yes", "y", false, "remove without asking for confirmation")
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersRemoveCmd)
	rootCmd.AddCommand(usersCmd)
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q: must be a positive integer", s)
	}
	return id, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if len(cfg.AuthorizedUsers) == 0 {
		term.Println("No authorized users.")
		return nil
	}
	rows := [][]string{{"ID", "NAME"}}
	for _, u := range cfg.AuthorizedUsers {
		name := u.Name
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{strconv.FormatInt(u.ID, 10), name})
	}
	term.Table(rows)
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	if err := config.AddUser(configPath(), config.AuthorizedUser{ID: id, Name: userNameFlag}); err != nil {
		return err
	}
	term.Printf("Authorized user %d\n", id)
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	if !userYesFlag {
		c := confirmer
		if c == nil && prompt.IsInteractive(os.Stdin) {
			c = prompt.NewTerminal(os.Stdin, os.Stderr)
		}
		if c != nil {
			ok, err := c.Confirm(fmt.Sprintf("Remove user %d?", id), false)
			if err != nil {
				return err
			}
			if !ok {
				term.Println("Aborted.")
				return nil
			}
		}
	}
	if err := config.RemoveUser(configPath(), id); err != nil {
		return err
	}
	term.Printf("Removed user %d\n", id)
	return nil
}
