package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"networth/internal/config"
	"networth/internal/services"
	"networth/internal/sheets"
	gsheets "networth/internal/sheets/google"
)

// newExporter is replaced in tests.
var newExporter = func(ctx context.Context, cfg *config.Config) (sheets.DashboardExporter, error) {
	if cfg.SheetsSpreadsheetID == "" {
		return nil, errors.New("GOOGLE_SPREADSHEET_ID is not set")
	}
	return gsheets.New(ctx, gsheets.Options{
		SpreadsheetID:  cfg.SheetsSpreadsheetID,
		JournalSheet:   cfg.SheetsJournalName,
		DashboardSheet: cfg.SheetsDashboardName,
	})
}

func newExportCmd() *cobra.Command {
	export := &cobra.Command{
		Use:   "export",
		Short: "Export ledger data to Google Sheets",
	}

	var user, period, from, to string
	dashboard := &cobra.Command{
		Use:   "dashboard",
		Short: "Append a dashboard summary to the dashboard sheet",
		Long: `Summarize one user's period and append it below the existing content of
"<year> <GOOGLE_DASHBOARD_SHEET_NAME>" in GOOGLE_SPREADSHEET_ID.

Example:
  ledgerctl export dashboard --user u-1 --period annual`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			q, err := dashboardQuery(period, from, to)
			if err != nil {
				return err
			}

			cfg, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			exporter, err := newExporter(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			summary, err := services.NewDashboardService(store, nil).Summarize(cmd.Context(), user, q)
			if err != nil {
				return err
			}
			ref, err := exporter.ExportDashboard(cmd.Context(), snapshot(user, summary, time.Now()))
			if err != nil {
				return fmt.Errorf("export dashboard: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", ref)
			return nil
		},
	}
	dashboard.Flags().StringVar(&user, "user", "", "user id (required)")
	dashboard.Flags().StringVar(&period, "period", "Monthly", "Daily, Weekly, Monthly, Quarterly, Annual or Custom")
	dashboard.Flags().StringVar(&from, "from", "", "start date for Custom (YYYY-MM-DD)")
	dashboard.Flags().StringVar(&to, "to", "", "end date for Custom (YYYY-MM-DD)")

	export.AddCommand(dashboard)
	return export
}

func snapshot(userID string, s services.DashboardSummary, now time.Time) sheets.DashboardSnapshot {
	return sheets.DashboardSnapshot{
		UserID:       userID,
		Period:       string(s.Period),
		From:         s.From,
		To:           s.To,
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Net:          s.Net,
		ByCategory:   s.ByCategory,
		ExportedAt:   now,
	}
}
