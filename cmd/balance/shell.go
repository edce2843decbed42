package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"balance/internal/backend"
	"balance/internal/cli"
	"balance/internal/core"
	"balance/internal/log"
	"balance/internal/session"
	"balance/internal/shell"
	"balance/internal/tracker"
)

var (
	shellNoColor  bool
	shellLogLevel string
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Track transactions from the terminal",
	Long: `Start an interactive session with an empty ledger.

Type "help" at the prompt for the list of commands. The ledger is
discarded when the shell exits.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().BoolVar(&shellNoColor, "no-color", false, "Disable colored output.")
	shellCmd.Flags().StringVar(&shellLogLevel, "log-level", "warn", "Log level for messages written to stderr.")
}

func runShell(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.LogLevel = shellLogLevel
	logger := cli.SetupLoggerTo(cfg, os.Stderr)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	be, err := backend.NewFactory(logger).Open(ctx, backendCfg)
	if err != nil {
		return err
	}
	if be.Close != nil {
		defer be.Close()
	}

	id := session.NewID()
	book, err := be.Store.Open(ctx, id)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Store.Drop(context.Background(), id); err != nil {
			logger.Error("Failed to discard ledger", log.FieldError, err)
		}
	}()

	tr := tracker.New(id, book,
		tracker.WithFormatter(core.NewFormatter(cfg.CurrencySymbol)),
		tracker.WithLogger(logger))

	sh := shell.New(tr, cmd.InOrStdin(), cmd.OutOrStdout(), shell.Options{
		Color:  !shellNoColor && shell.ColorEnabled(os.Stdout),
		Width:  shell.TerminalWidth(os.Stdout),
		Logger: logger,
	})
	return sh.Run(ctx)
}
