// Package ledger defines the persistence ports of the net-worth ledger.
//
// Every mutation of a transaction, its expense mirror and the balances it
// touches runs inside a single Store.WithTx call. Balances are only ever
// changed through relative increments (AdjustBankBalance, AdjustCardUsage) so
// that concurrent units never overwrite each other's work.
package ledger

import (
	"context"
	"time"

	"networth/internal/core"
)

// Reader holds the lookups available both inside and outside an atomic unit.
// Every lookup is scoped to the owning user; rows of other users are reported
// as core.NotFoundError.
type Reader interface {
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	GetExpenseByTransaction(ctx context.Context, userID, transactionID string) (core.ExpenseRecord, bool, error)
	CategoryName(ctx context.Context, userID, categoryID string) (string, error)
	HasBankAccount(ctx context.Context, userID, id string) (bool, error)
	HasCreditCard(ctx context.Context, userID, id string) (bool, error)
}

// Tx is one atomic unit of work.
type Tx interface {
	Reader

	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error

	// AdvanceRecurrence moves a recurring parent forward and clears its claim.
	AdvanceRecurrence(ctx context.Context, userID, id string, lastRun, nextRun time.Time) error

	InsertExpense(ctx context.Context, e core.ExpenseRecord) error
	UpdateExpense(ctx context.Context, e core.ExpenseRecord) error
	DeleteExpensesByTransaction(ctx context.Context, userID, transactionID string) (int64, error)

	// AdjustBankBalance adds deltaCents to a bank or wallet account balance.
	AdjustBankBalance(ctx context.Context, userID, accountID string, deltaCents int64) error
	// AdjustCardUsage adds deltaCents to a credit card's used amount.
	AdjustCardUsage(ctx context.Context, userID, cardID string, deltaCents int64) error
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	AccountID string
	Limit     int
}

// Store is the ledger persistence port.
type Store interface {
	Reader

	// WithTx runs fn in one atomic unit. Any error returned by fn rolls back
	// every write made through the Tx.
	WithTx(ctx context.Context, fn func(Tx) error) error

	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]core.Transaction, error)

	// ListDueRecurring returns recurring parents of all users whose next run
	// date is at or before now and that are not claimed past now.
	ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error)
	// ClaimRecurring takes a lease on a parent until the given time. It reports
	// false when another worker already holds the lease.
	ClaimRecurring(ctx context.Context, id string, now, until time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error

	TransactionsBetween(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	ExpensesBetween(ctx context.Context, userID string, from, to time.Time) ([]core.ExpenseRecord, error)

	CreateAccount(ctx context.Context, a core.Account) error
	GetAccount(ctx context.Context, userID, id string) (core.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)

	// CreateExpense stores an expense that is not backed by a transaction.
	CreateExpense(ctx context.Context, e core.ExpenseRecord) error

	// RecordEvent stores an event once; it reports false for a duplicate ID.
	RecordEvent(ctx context.Context, e core.LedgerEvent) (bool, error)
	CountEvents(ctx context.Context, transactionID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
