package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"networth/internal/core"
	ports "networth/internal/sheets"
)

const dayLayout = "2006-01-02"

var journalHeader = []any{"Date", "Kind", "Type", "Amount", "Transaction", "User", "Event"}

// eventRow lays out one journal row: A date, B kind, C type, D amount,
// E transaction id, F user id, G event id. Expense amounts are negative.
func eventRow(e core.LedgerEvent) []any {
	amount := e.Amount
	if e.Type == core.Expense {
		amount = amount.Neg()
	}
	return []any{
		e.OccurredAt.UTC().Format(dayLayout),
		string(e.Kind),
		string(e.Type),
		sheetAmount(amount),
		e.TransactionID,
		e.UserID,
		e.ID,
	}
}

// dashboardRows renders a snapshot as a three column block followed by an
// empty separator row.
func dashboardRows(s ports.DashboardSnapshot) [][]any {
	window := fmt.Sprintf("%s .. %s", s.From.UTC().Format(dayLayout), s.To.UTC().Format(dayLayout))
	rows := [][]any{
		{s.UserID, s.Period, window},
		{"Income", sheetAmount(s.TotalIncome), ""},
		{"Expense", sheetAmount(s.TotalExpense), ""},
		{"Net", sheetAmount(s.Net), ""},
	}
	for _, c := range s.ByCategory {
		rows = append(rows, []any{"", sheetAmount(c.Amount), c.Name})
	}
	exported := ""
	if !s.ExportedAt.IsZero() {
		exported = "exported " + s.ExportedAt.UTC().Format("2006-01-02 15:04")
	}
	return append(rows, []any{"", "", exported})
}

// sheetAmount keeps two decimals; USER_ENTERED turns it into a number cell.
func sheetAmount(d decimal.Decimal) float64 {
	return core.RoundMoney(d).InexactFloat64()
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
