package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"networth/internal/services"
)

func newDashboardCmd() *cobra.Command {
	var user, period, from, to string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print a user's dashboard summary",
		Long: `Print income, expense, net, spending by category and recent activity
for one user over a period (Daily, Weekly, Monthly, Quarterly, Annual or Custom).

Example:
  ledgerctl dashboard --user u-1
  ledgerctl dashboard --user u-1 --period custom --from 2024-01-01 --to 2024-01-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			q, err := dashboardQuery(period, from, to)
			if err != nil {
				return err
			}

			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := services.NewDashboardService(store, nil).Summarize(cmd.Context(), user, q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Period\t%s (%s .. %s)\n", summary.Period,
				summary.From.Format("2006-01-02"), summary.To.Format("2006-01-02"))
			fmt.Fprintf(w, "Income\t%s\n", summary.TotalIncome.StringFixed(2))
			fmt.Fprintf(w, "Expense\t%s\n", summary.TotalExpense.StringFixed(2))
			fmt.Fprintf(w, "Net\t%s\n", summary.Net.StringFixed(2))
			if len(summary.ByCategory) > 0 {
				fmt.Fprintln(w, "\nCategory\tAmount")
				for _, c := range summary.ByCategory {
					fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Amount.StringFixed(2))
				}
			}
			if len(summary.Recent) > 0 {
				fmt.Fprintln(w, "\nDate\tType\tAmount\tDescription")
				for _, r := range summary.Recent {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Date.Format("2006-01-02"), r.Type, r.Amount.StringFixed(2), r.Description)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&period, "period", "Monthly", "Daily, Weekly, Monthly, Quarterly, Annual or Custom")
	cmd.Flags().StringVar(&from, "from", "", "start date for Custom (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date for Custom (YYYY-MM-DD)")
	return cmd
}

func dashboardQuery(period, from, to string) (services.DashboardQuery, error) {
	p, err := services.ParsePeriod(period)
	if err != nil {
		return services.DashboardQuery{}, err
	}
	q := services.DashboardQuery{Period: p}
	if from != "" {
		if q.StartDate, err = parseDay(from); err != nil {
			return q, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if q.EndDate, err = parseDay(to); err != nil {
			return q, fmt.Errorf("--to: %w", err)
		}
	}
	return q, nil
}
