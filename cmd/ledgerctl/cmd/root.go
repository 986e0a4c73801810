// Package cmd provides CLI commands for ledgerctl.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"networth/internal/cli"
	"networth/internal/config"
	"networth/internal/log"
	"networth/internal/storage"
)

// NewRootCmd builds the command tree. Configuration comes from the same
// environment variables as the services.
func NewRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the networth ledger",
		Long: `ledgerctl runs maintenance tasks against the ledger database.

It supports:
- Applying schema migrations
- Materializing due recurring transactions on demand
- Printing a dashboard summary for a user
- Registering bank accounts, wallets, credit cards and categories
- Exporting dashboard summaries to Google Sheets

Example:
  ledgerctl migrate
  ledgerctl recurring run
  ledgerctl dashboard --user u-1 --period quarterly`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			log.SetDefault(log.New(log.Config{
				Level:     level,
				Format:    "text",
				Component: log.ComponentCLI,
				Output:    cmd.ErrOrStderr(),
			}))
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRecurringCmd())
	root.AddCommand(newDashboardCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newCategoryCmd())
	root.AddCommand(newExportCmd())
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore loads the configuration and opens the migrated store.
func openStore(ctx context.Context) (*config.Config, *storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, storage.Options{
		Driver: storage.Driver(cfg.DBDriver),
		DSN:    cfg.DSN(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger store: %w", err)
	}
	return cfg, store, nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
