package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"networth/internal/core"
	"networth/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = a + ? WHERE id = ? AND user_id = ?`
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `UPDATE t SET a = a + $1 WHERE id = $2 AND user_id = $3`, rebind(DriverPostgres, q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DriverSQLite.dsn("a.db"))
	assert.Equal(t, "a.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DriverSQLite.dsn("a.db?mode=rwc"))
	assert.Equal(t, "postgres://x", DriverPostgres.dsn("postgres://x"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
}

func TestAdjustBalance_RelativeAndScoped(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateAccount(ctx, core.Account{ID: "b1", UserID: "u1", Kind: core.KindBank, Name: "Main", Balance: decimal.NewFromInt(100)}))
	require.NoError(t, s.CreateAccount(ctx, core.Account{ID: "c1", UserID: "u1", Kind: core.KindCreditCard, Name: "Visa", CreditLimit: decimal.NewFromInt(1000)}))

	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.AdjustBankBalance(ctx, "u1", "b1", -2550); err != nil {
			return err
		}
		return tx.AdjustCardUsage(ctx, "u1", "c1", 999)
	})
	require.NoError(t, err)

	bank, err := s.GetAccount(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, bank.Balance.Equal(decimal.RequireFromString("74.50")), "balance %s", bank.Balance)

	card, err := s.GetAccount(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.KindCreditCard, card.Kind)
	assert.True(t, card.UsedAmount.Equal(decimal.RequireFromString("9.99")))

	// another user's account is invisible
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.AdjustBankBalance(ctx, "u2", "b1", 100)
	})
	assert.True(t, core.IsNotFound(err))

	_, err = s.GetAccount(ctx, "u2", "b1")
	assert.True(t, core.IsNotFound(err))
}

func TestCreateAccount_RejectsOutOfRangeBalance(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.CreateAccount(ctx, core.Account{ID: "b1", UserID: "u1", Kind: core.KindBank, Name: "Main",
		Balance: decimal.RequireFromString("184467440737095516.17")})
	assert.True(t, core.IsClientError(err))

	_, err = s.GetAccount(ctx, "u1", "b1")
	assert.True(t, core.IsNotFound(err))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateAccount(ctx, core.Account{ID: "b1", UserID: "u1", Kind: core.KindBank, Name: "Main"}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.AdjustBankBalance(ctx, "u1", "b1", 5000))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	bank, err := s.GetAccount(ctx, "u1", "b1")
	require.NoError(t, err)
	assert.True(t, bank.Balance.IsZero())
}

func TestTransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.CreateAccount(ctx, core.Account{ID: "b1", UserID: "u1", Kind: core.KindBank, Name: "Main"}))

	date := time.Date(2024, 1, 31, 8, 30, 0, 0, time.UTC)
	next := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	in := core.Transaction{
		ID: "t1", UserID: "u1", Amount: decimal.RequireFromString("12.34"), Type: core.Expense,
		Date: date, Description: "gym", AccountID: "b1", Source: core.SourceManual,
		IsRecurring: true, Recurrence: core.RecurrenceRule{Type: core.Monthly},
		NextRunDate: &next, LastRunDate: &date, CreatedAt: date, UpdatedAt: date,
	}
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Tx) error { return tx.InsertTransaction(ctx, in) }))

	got, err := s.GetTransaction(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(in.Amount))
	assert.Equal(t, date, got.Date)
	assert.Equal(t, core.Monthly, got.Recurrence.Type)
	require.NotNil(t, got.NextRunDate)
	assert.Equal(t, next, *got.NextRunDate)
	assert.True(t, got.IsRecurring)

	_, err = s.GetTransaction(ctx, "u2", "t1")
	assert.True(t, core.IsNotFound(err))
}

func TestClaimRecurring(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)
	in := core.Transaction{
		ID: "p1", UserID: "u1", Amount: decimal.NewFromInt(5), Type: core.Income, Date: due,
		Source: core.SourceManual, IsRecurring: true, Recurrence: core.RecurrenceRule{Type: core.Daily},
		NextRunDate: &due, CreatedAt: due, UpdatedAt: due,
	}
	require.NoError(t, s.WithTx(ctx, func(tx ledger.Tx) error { return tx.InsertTransaction(ctx, in) }))

	list, err := s.ListDueRecurring(ctx, now)
	require.NoError(t, err)
	require.Len(t, list, 1)

	ok, err := s.ClaimRecurring(ctx, "p1", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimRecurring(ctx, "p1", now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail while the lease is held")

	list, err = s.ListDueRecurring(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.ReleaseClaim(ctx, "p1"))
	list, err = s.ListDueRecurring(ctx, now)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordEvent_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ev := core.LedgerEvent{ID: "e1", Kind: core.EventCreated, TransactionID: "t1", UserID: "u1",
		Type: core.Income, Amount: decimal.NewFromInt(3), OccurredAt: time.Now()}

	inserted, err := s.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.RecordEvent(ctx, ev)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountEvents(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
