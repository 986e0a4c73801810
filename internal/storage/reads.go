package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"networth/internal/core"
	"networth/internal/ledger"
)

const defaultListLimit = 200

func (s *Store) ListTransactions(ctx context.Context, userID string, f ledger.TransactionFilter) ([]core.Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if f.AccountID != "" {
		query += ` AND (account_id = ? OR to_bank_account_id = ? OR credit_card_id = ?)`
		args = append(args, f.AccountID, f.AccountID, f.AccountID)
	}
	query += ` ORDER BY occurred_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)
	return s.listTransactions(ctx, query, args...)
}

func (s *Store) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	ms := toMillis(now)
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE is_recurring = ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		AND (locked_until IS NULL OR locked_until <= ?)
		ORDER BY next_run_at ASC, id ASC`, true, ms, ms)
}

func (s *Store) ClaimRecurring(ctx context.Context, id string, now, until time.Time) (bool, error) {
	res, err := s.queries.exec(ctx, `UPDATE transactions SET locked_until = ?
		WHERE id = ? AND is_recurring = ? AND (locked_until IS NULL OR locked_until <= ?)`,
		toMillis(until), id, true, toMillis(now))
	if err != nil {
		return false, fmt.Errorf("claim recurring %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) ReleaseClaim(ctx context.Context, id string) error {
	if _, err := s.queries.exec(ctx, `UPDATE transactions SET locked_until = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("release claim %s: %w", id, err)
	}
	return nil
}

func (s *Store) TransactionsBetween(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	return s.listTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, created_at DESC`, userID, toMillis(from), toMillis(to))
}

func (s *Store) ExpensesBetween(ctx context.Context, userID string, from, to time.Time) ([]core.ExpenseRecord, error) {
	rows, err := s.queries.query(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, created_at DESC`, userID, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseRecord
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, e core.ExpenseRecord) error {
	return s.queries.InsertExpense(ctx, e)
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.queries.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, a core.Account) error {
	for _, v := range []decimal.Decimal{a.Balance, a.UsedAmount, a.CreditLimit} {
		if err := core.ValidateBalance("balance", v); err != nil {
			return err
		}
	}
	now := toMillis(time.Now())
	var err error
	switch a.Kind {
	case core.KindBank, core.KindWallet:
		_, err = s.queries.exec(ctx, `INSERT INTO bank_accounts (id, user_id, kind, name, balance_cents, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, a.ID, a.UserID, string(a.Kind), a.Name, core.ToCents(a.Balance), now)
	case core.KindCreditCard:
		_, err = s.queries.exec(ctx, `INSERT INTO credit_cards (id, user_id, name, used_cents, limit_cents, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, a.ID, a.UserID, a.Name, core.ToCents(a.UsedAmount), core.ToCents(a.CreditLimit), now)
	default:
		return core.NewValidationError("kind", "must be BANK, WALLET or CREDIT_CARD")
	}
	if err != nil {
		return fmt.Errorf("create account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount looks the id up among bank accounts first, then credit cards.
func (s *Store) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	a := core.Account{ID: id, UserID: userID}
	var kind string
	var balance int64
	err := s.queries.queryRow(ctx, `SELECT kind, name, balance_cents FROM bank_accounts WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&kind, &a.Name, &balance)
	if err == nil {
		a.Kind = core.AccountKind(kind)
		a.Balance = core.FromCents(balance)
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("get bank account %s: %w", id, err)
	}

	var used, limit int64
	err = s.queries.queryRow(ctx, `SELECT name, used_cents, limit_cents FROM credit_cards WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&a.Name, &used, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.NewNotFoundError("account", id)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get credit card %s: %w", id, err)
	}
	a.Kind = core.KindCreditCard
	a.UsedAmount = core.FromCents(used)
	a.CreditLimit = core.FromCents(limit)
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := s.queries.query(ctx, `
		SELECT id, kind, name, balance_cents, 0, 0 FROM bank_accounts WHERE user_id = ?
		UNION ALL
		SELECT id, 'CREDIT_CARD', name, 0, used_cents, limit_cents FROM credit_cards WHERE user_id = ?
		ORDER BY 3, 1`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a                    core.Account
			kind                 string
			balance, used, limit int64
		)
		if err := rows.Scan(&a.ID, &kind, &a.Name, &balance, &used, &limit); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.UserID = userID
		a.Kind = core.AccountKind(kind)
		a.Balance = core.FromCents(balance)
		a.UsedAmount = core.FromCents(used)
		a.CreditLimit = core.FromCents(limit)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := s.queries.exec(ctx, `INSERT INTO categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Name, err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := s.queries.query(ctx, `SELECT id, name FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c := core.Category{UserID: userID}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordEvent inserts the event unless its id was already recorded.
func (s *Store) RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error) {
	res, err := s.queries.exec(ctx, `INSERT INTO ledger_events
		(id, kind, transaction_id, user_id, tx_type, amount_cents, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, string(e.Kind), e.TransactionID, e.UserID, string(e.Type),
		core.ToCents(e.Amount), toMillis(e.OccurredAt), toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) CountEvents(ctx context.Context, transactionID string) (int, error) {
	var n int
	err := s.queries.queryRow(ctx, `SELECT COUNT(*) FROM ledger_events WHERE transaction_id = ?`, transactionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
