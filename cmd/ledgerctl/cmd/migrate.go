package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"networth/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply every pending migration for the configured driver (DB_DRIVER),
or revert the most recent ones with --down.

Example:
  DB_DRIVER=postgres DATABASE_URL=postgres://... ledgerctl migrate
  ledgerctl migrate --down 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			driver := storage.Driver(cfg.DBDriver)

			var result storage.MigrationResult
			if down > 0 {
				slog.Info("Reverting migrations", "driver", cfg.DBDriver, "steps", down)
				result, err = storage.RollbackMigrations(driver, cfg.DSN(), down)
			} else {
				slog.Info("Running migrations", "driver", cfg.DBDriver)
				result, err = storage.RunMigrations(driver, cfg.DSN())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Changed() {
				fmt.Fprintf(out, "migrations applied (%s): already at version %d\n", cfg.DBDriver, result.To)
				return nil
			}
			fmt.Fprintf(out, "migrations applied (%s): version %d -> %d\n", cfg.DBDriver, result.From, result.To)
			return nil
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "revert this many migrations instead of applying")
	return cmd
}
