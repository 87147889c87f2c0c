// Package cmd implements the telecommand CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/term"
	"github.com/xdg/telecommand/internal/version"
)

var (
	configFlag string
	debugFlag  bool
	silentFlag bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "telecommand",
	Short: "Run whitelisted shell commands on this host from a chat",
	Long: `Telecommand lets authorized chat users run shell commands on this host.

A long-running worker receives chat updates from a relay, checks each sender
against the authorized users and each command against the whitelist, runs it
with a time limit and replies with the output. Every decision is written to
an audit log and forwarded to the console, which also starts and stops the
worker.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		term.SetSilent(silentFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file (default $"+config.EnvPath+" or "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&silentFlag, "silent", false, "suppress normal output")
}

// Execute runs the root command and returns any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !isExitCode(err) {
		term.Error("%v", err)
	}
	_ = clog.Close()
	return err
}

// configPath is the config file this invocation uses.
func configPath() string {
	return config.ResolvePath(configFlag)
}

// loadConfig loads the configuration and points the logger at its log
// file. detached keeps warnings off stderr for background processes.
func loadConfig(detached bool) (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}

	level, err := clog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	if debugFlag {
		level = clog.LevelDebug
	}
	if err := clog.Configure(clog.Options{Path: cfg.Log.File, Level: level, Detached: detached}); err != nil {
		term.Warn("cannot open log file %s: %v", cfg.Log.File, err)
	}
	return cfg, nil
}
