package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"networth/internal/core"
	ports "networth/internal/sheets"
)

type fakeValues struct {
	rows      map[string][][]any
	updates   []string
	written   [][]any
	getErr    error
	updateErr error
}

func (f *fakeValues) get(_ context.Context, _ string, rng string) ([][]any, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.rows[rng], nil
}

func (f *fakeValues) update(_ context.Context, _ string, rng string, rows [][]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, rng)
	f.written = append(f.written, rows...)
	return nil
}

func testEvent() core.LedgerEvent {
	return core.LedgerEvent{
		ID:            "ev-1",
		Kind:          core.EventCreated,
		TransactionID: "tx-1",
		UserID:        "u-1",
		Type:          core.Expense,
		Amount:        decimal.RequireFromString("12.345"),
		OccurredAt:    time.Date(2024, 3, 5, 22, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
}

func TestAppendEvent_WritesHeaderOnEmptySheet(t *testing.T) {
	values := &fakeValues{rows: map[string][][]any{}}
	c := newClient(values, Options{SpreadsheetID: "s-1"})

	ref, err := c.AppendEvent(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, "2024 Journal!A1:G2", ref)
	require.Len(t, values.written, 2)
	assert.Equal(t, journalHeader, values.written[0])
	assert.Equal(t, []any{"2024-03-05", "transaction.created", "EXPENSE", -12.35, "tx-1", "u-1", "ev-1"}, values.written[1])
}

func TestAppendEvent_AppendsAfterExistingRows(t *testing.T) {
	values := &fakeValues{rows: map[string][][]any{
		"2024 Ledger!A:A": {{"Date"}, {"2024-01-01"}, {"2024-01-02"}},
	}}
	c := newClient(values, Options{SpreadsheetID: "s-1", JournalSheet: "Ledger"})

	e := testEvent()
	e.Type = core.Income
	ref, err := c.AppendEvent(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "2024 Ledger!A4:G4", ref)
	require.Len(t, values.written, 1)
	assert.Equal(t, 12.35, values.written[0][3])
}

func TestAppendEvent_Errors(t *testing.T) {
	c := newClient(&fakeValues{}, Options{SpreadsheetID: "s-1"})
	_, err := c.AppendEvent(context.Background(), core.LedgerEvent{})
	assert.Error(t, err)

	boom := errors.New("quota exceeded")
	c = newClient(&fakeValues{getErr: boom}, Options{SpreadsheetID: "s-1"})
	_, err = c.AppendEvent(context.Background(), testEvent())
	assert.ErrorIs(t, err, boom)

	c = newClient(&fakeValues{updateErr: boom}, Options{SpreadsheetID: "s-1"})
	_, err = c.AppendEvent(context.Background(), testEvent())
	assert.ErrorIs(t, err, boom)
}

func TestExportDashboard(t *testing.T) {
	values := &fakeValues{rows: map[string][][]any{
		"2024 Dashboard!A:A": {{"u-0"}},
	}}
	c := newClient(values, Options{SpreadsheetID: "s-1"})

	snap := ports.DashboardSnapshot{
		UserID:       "u-1",
		Period:       "Monthly",
		From:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:           time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
		TotalIncome:  decimal.NewFromInt(1000),
		TotalExpense: decimal.NewFromInt(120),
		Net:          decimal.NewFromInt(880),
		ByCategory: []core.CategoryAmount{
			{Name: "Food", Amount: decimal.NewFromInt(100)},
			{Name: core.UncategorizedLabel, Amount: decimal.NewFromInt(20)},
		},
	}
	ref, err := c.ExportDashboard(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "2024 Dashboard!A2:C8", ref)
	require.Len(t, values.written, 7)
	assert.Equal(t, []any{"u-1", "Monthly", "2024-01-01 .. 2024-01-31"}, values.written[0])
	assert.Equal(t, []any{"Net", 880.0, ""}, values.written[3])
	assert.Equal(t, []any{"", 20.0, core.UncategorizedLabel}, values.written[5])

	_, err = c.ExportDashboard(context.Background(), ports.DashboardSnapshot{})
	assert.Error(t, err)
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Journal", "2025 Journal"},
		{" Journal ", "2025 Journal"},
		{"2024 Journal", "2024 Journal"},
		{"1234", "2025 1234"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, 2025), tt.base)
	}
}

func TestNew_RequiresSpreadsheet(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}
