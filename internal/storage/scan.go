package storage

import (
	"database/sql"
	"time"

	"networth/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

func transactionArgs(t core.Transaction) []any {
	var (
		recType  sql.NullString
		interval sql.NullInt64
		unit     sql.NullString
	)
	if t.IsRecurring {
		recType = nullString(string(t.Recurrence.Type))
		if t.Recurrence.Interval > 0 {
			interval = sql.NullInt64{Int64: int64(t.Recurrence.Interval), Valid: true}
		}
		unit = nullString(string(t.Recurrence.Unit))
	}
	return []any{
		t.ID,
		t.UserID,
		core.ToCents(t.Amount),
		string(t.Type),
		toMillis(t.Date),
		t.Description,
		t.Merchant,
		nullString(t.CategoryID),
		nullString(t.AccountID),
		nullString(t.CreditCardID),
		nullString(t.ToBankAccountID),
		string(t.Source),
		t.IsRecurring,
		recType,
		interval,
		unit,
		nullMillis(t.NextRunDate),
		nullMillis(t.LastRunDate),
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	}
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                                  core.Transaction
		amount, occurred, created, updated int64
		txType, source                     string
		category, account, card, toAccount sql.NullString
		recType, unit                      sql.NullString
		interval, nextRun, lastRun         sql.NullInt64
	)
	err := s.Scan(
		&t.ID, &t.UserID, &amount, &txType, &occurred, &t.Description, &t.Merchant,
		&category, &account, &card, &toAccount, &source,
		&t.IsRecurring, &recType, &interval, &unit,
		&nextRun, &lastRun, &created, &updated,
	)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = core.FromCents(amount)
	t.Type = core.TransactionType(txType)
	t.Date = fromMillis(occurred)
	t.CategoryID = category.String
	t.AccountID = account.String
	t.CreditCardID = card.String
	t.ToBankAccountID = toAccount.String
	t.Source = core.Source(source)
	t.Recurrence = core.RecurrenceRule{
		Type:     core.RecurrenceType(recType.String),
		Interval: int(interval.Int64),
		Unit:     core.RecurrenceUnit(unit.String),
	}
	t.NextRunDate = fromNullMillis(nextRun)
	t.LastRunDate = fromNullMillis(lastRun)
	t.CreatedAt = fromMillis(created)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

func expenseArgs(e core.ExpenseRecord) []any {
	return []any{
		e.ID,
		e.UserID,
		nullString(e.TransactionID),
		core.ToCents(e.Amount),
		toMillis(e.Date),
		e.Category,
		e.Merchant,
		e.Description,
		string(e.PaymentMethod),
		nullString(e.AccountID),
		nullString(e.CreditCardID),
	}
}

func scanExpense(s scanner) (core.ExpenseRecord, error) {
	var (
		e                   core.ExpenseRecord
		amount, occurred    int64
		method              string
		txID, account, card sql.NullString
	)
	err := s.Scan(&e.ID, &e.UserID, &txID, &amount, &occurred, &e.Category,
		&e.Merchant, &e.Description, &method, &account, &card)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	e.TransactionID = txID.String
	e.Amount = core.FromCents(amount)
	e.Date = fromMillis(occurred)
	e.PaymentMethod = core.PaymentMethod(method)
	e.AccountID = account.String
	e.CreditCardID = card.String
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
