package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"networth/internal/services"
)

func newRecurringCmd() *cobra.Command {
	recurring := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring transactions",
	}

	var (
		at    string
		lease time.Duration
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Materialize every due recurring transaction once",
		Long: `Run the recurring scheduler once, outside the daily trigger.

Each due parent is materialized in its own unit of work; a failing parent
is reported and left for the next run.

Example:
  ledgerctl recurring run
  ledgerctl recurring run --at 2024-02-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := parseDay(at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = parsed
			}

			cfg, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if !cmd.Flags().Changed("lease") {
				lease = cfg.RecurringClaimLease
			}
			processor := services.NewRecurringProcessor(store, services.NewTransactionService(store, nil), lease)
			summary, err := processor.ProcessDue(cmd.Context(), now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "due: %d  processed: %d  skipped: %d  failed: %d\n",
				summary.Due, summary.Processed, summary.Skipped, len(summary.Failed))
			for _, f := range summary.Failed {
				fmt.Fprintf(out, "  %s: %v\n", f.ParentID, f.Err)
			}
			if len(summary.Failed) > 0 {
				return fmt.Errorf("%d recurring transactions failed", len(summary.Failed))
			}
			return nil
		},
	}
	run.Flags().StringVar(&at, "at", "", "process as of this date (YYYY-MM-DD or RFC 3339, default now)")
	run.Flags().DurationVar(&lease, "lease", 0, "claim lease per parent (default RECURRING_CLAIM_LEASE)")

	recurring.AddCommand(run)
	return recurring
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
