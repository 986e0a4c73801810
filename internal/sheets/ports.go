// Package sheets mirrors the ledger into a spreadsheet: an append-only
// journal of committed ledger events and point-in-time dashboard exports.
// The ledger store stays the source of truth.
package sheets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"networth/internal/core"
)

// Ports for outbound adapters.
type (
	EventJournal interface {
		AppendEvent(ctx context.Context, e core.LedgerEvent) (rowRef string, err error)
	}

	DashboardExporter interface {
		// ExportDashboard writes one summary block and returns its range.
		ExportDashboard(ctx context.Context, s DashboardSnapshot) (rowRef string, err error)
	}
)

// DashboardSnapshot is the exported form of a dashboard summary.
type DashboardSnapshot struct {
	UserID       string
	Period       string
	From         time.Time
	To           time.Time
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Net          decimal.Decimal
	ByCategory   []core.CategoryAmount
	ExportedAt   time.Time
}
