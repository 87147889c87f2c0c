package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xdg/telecommand/internal/clog"
	"github.com/xdg/telecommand/internal/collector"
	"github.com/xdg/telecommand/internal/config"
	"github.com/xdg/telecommand/internal/console"
	"github.com/xdg/telecommand/internal/term"
)

const consoleShutdownTimeout = 5 * time.Second

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serve the admin console API",
}

var consoleServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin API and audit collector",
	Long: `Serve the admin HTTP API on console.listen until interrupted.

The API starts, stops and reports on the background worker, accepts audit
records the worker forwards to /api/log, and answers log and statistics
queries. Requests authenticate with a bearer token from console.tokens;
admin tokens may control the worker, viewer tokens may only read.`,
	Args: cobra.NoArgs,
	RunE: runConsoleServe,
}

func init() {
	consoleCmd.AddCommand(consoleServeCmd)
	rootCmd.AddCommand(consoleCmd)
}

func runConsoleServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := collector.Open(ctx, collector.Options{Path: cfg.Console.Database})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			clog.Warn("console: %v", err)
		}
	}()

	sup, err := newSupervisor(cfg)
	if err != nil {
		return err
	}

	srv, err := newConsoleServer(cfg, sup, store)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	term.Printf("Console listening on %s\n", srv.ListenAddr())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), consoleShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("console shutdown: %w", err)
	}
	return nil
}

func newConsoleServer(cfg *config.Config, worker console.Controller, logs console.LogStore) (*console.Server, error) {
	srv := console.NewServer(cfg.Console.Listen, worker, logs)
	srv.CollectorToken = cfg.Console.CollectorToken
	for _, tok := range cfg.Console.Tokens {
		if err := srv.Grant(tok.Token, tok.Name, tok.Role); err != nil {
			return nil, fmt.Errorf("console token %q: %w", tok.Name, err)
		}
	}
	if len(cfg.Console.Tokens) == 0 {
		clog.Warn("console: no tokens configured; only /healthz and /api/log are reachable")
		term.Warn("no console tokens configured; add console.tokens to %s", configPath())
	}
	return srv, nil
}
