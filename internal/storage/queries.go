package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"networth/internal/core"
	"networth/internal/ledger"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db     dbtx
	driver Driver
}

var _ ledger.Tx = (*queries)(nil)

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, rebind(q.driver, query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, rebind(q.driver, query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, rebind(q.driver, query), args...)
}

const transactionColumns = `id, user_id, amount_cents, type, occurred_at, description, merchant,
	category_id, account_id, credit_card_id, to_bank_account_id, source,
	is_recurring, recurrence_type, recurrence_interval, recurrence_unit,
	next_run_at, last_run_at, created_at, updated_at`

const expenseColumns = `id, user_id, transaction_id, amount_cents, occurred_at, category,
	merchant, description, payment_method, account_id, credit_card_id`

func (q *queries) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := q.exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		transactionArgs(t)...)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", t.ID, err)
	}
	return nil
}

func (q *queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	args := transactionArgs(t)
	// drop id, user_id and created_at; append the key
	set := append([]any{}, args[2:18]...)
	set = append(set, toMillis(t.UpdatedAt), t.ID, t.UserID)
	res, err := q.exec(ctx, `UPDATE transactions SET
		amount_cents = ?, type = ?, occurred_at = ?, description = ?, merchant = ?,
		category_id = ?, account_id = ?, credit_card_id = ?, to_bank_account_id = ?, source = ?,
		is_recurring = ?, recurrence_type = ?, recurrence_interval = ?, recurrence_unit = ?,
		next_run_at = ?, last_run_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`, set...)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return requireRow(res, "transaction", t.ID)
}

func (q *queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.exec(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return requireRow(res, "transaction", id)
}

func (q *queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := q.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (q *queries) AdvanceRecurrence(ctx context.Context, userID, id string, lastRun, nextRun time.Time) error {
	res, err := q.exec(ctx, `UPDATE transactions
		SET last_run_at = ?, next_run_at = ?, locked_until = NULL, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_recurring = ?`,
		toMillis(lastRun), toMillis(nextRun), toMillis(time.Now()), id, userID, true)
	if err != nil {
		return fmt.Errorf("advance recurrence %s: %w", id, err)
	}
	return requireRow(res, "transaction", id)
}

func (q *queries) InsertExpense(ctx context.Context, e core.ExpenseRecord) error {
	_, err := q.exec(ctx, `INSERT INTO expenses (`+expenseColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(expenseArgs(e), toMillis(time.Now()))...)
	if err != nil {
		return fmt.Errorf("insert expense %s: %w", e.ID, err)
	}
	return nil
}

func (q *queries) UpdateExpense(ctx context.Context, e core.ExpenseRecord) error {
	res, err := q.exec(ctx, `UPDATE expenses SET
		amount_cents = ?, occurred_at = ?, category = ?, merchant = ?, description = ?,
		payment_method = ?, account_id = ?, credit_card_id = ?
		WHERE id = ? AND user_id = ?`,
		core.ToCents(e.Amount), toMillis(e.Date), e.Category, e.Merchant, e.Description,
		string(e.PaymentMethod), nullString(e.AccountID), nullString(e.CreditCardID),
		e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	return requireRow(res, "expense", e.ID)
}

func (q *queries) DeleteExpensesByTransaction(ctx context.Context, userID, transactionID string) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM expenses WHERE transaction_id = ? AND user_id = ?`, transactionID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete expenses of transaction %s: %w", transactionID, err)
	}
	return res.RowsAffected()
}

func (q *queries) GetExpenseByTransaction(ctx context.Context, userID, transactionID string) (core.ExpenseRecord, bool, error) {
	row := q.queryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE transaction_id = ? AND user_id = ?`,
		transactionID, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, false, nil
	}
	if err != nil {
		return core.ExpenseRecord{}, false, fmt.Errorf("get expense of transaction %s: %w", transactionID, err)
	}
	return e, true, nil
}

func (q *queries) AdjustBankBalance(ctx context.Context, userID, accountID string, deltaCents int64) error {
	res, err := q.exec(ctx, `UPDATE bank_accounts SET balance_cents = balance_cents + ? WHERE id = ? AND user_id = ?`,
		deltaCents, accountID, userID)
	if err != nil {
		return fmt.Errorf("adjust bank account %s: %w", accountID, err)
	}
	return requireRow(res, "bank_account", accountID)
}

func (q *queries) AdjustCardUsage(ctx context.Context, userID, cardID string, deltaCents int64) error {
	res, err := q.exec(ctx, `UPDATE credit_cards SET used_cents = used_cents + ? WHERE id = ? AND user_id = ?`,
		deltaCents, cardID, userID)
	if err != nil {
		return fmt.Errorf("adjust credit card %s: %w", cardID, err)
	}
	return requireRow(res, "credit_card", cardID)
}

func (q *queries) CategoryName(ctx context.Context, userID, categoryID string) (string, error) {
	var name string
	err := q.queryRow(ctx, `SELECT name FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.NewNotFoundError("category", categoryID)
	}
	if err != nil {
		return "", fmt.Errorf("get category %s: %w", categoryID, err)
	}
	return name, nil
}

func (q *queries) HasBankAccount(ctx context.Context, userID, id string) (bool, error) {
	return q.exists(ctx, `SELECT 1 FROM bank_accounts WHERE id = ? AND user_id = ?`, id, userID)
}

func (q *queries) HasCreditCard(ctx context.Context, userID, id string) (bool, error) {
	return q.exists(ctx, `SELECT 1 FROM credit_cards WHERE id = ? AND user_id = ?`, id, userID)
}

func (q *queries) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := q.queryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup: %w", err)
	}
	return true, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.NewNotFoundError(kind, id)
	}
	return nil
}
