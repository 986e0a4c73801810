/*
Package storage implements the ledger.Store port on database/sql.

DRIVERS:

	sqlite:   modernc.org/sqlite, pure Go, single writer connection with a busy
	          timeout and foreign keys on. Default for local use and tests.
	postgres: jackc/pgx/v5 through its database/sql adapter.

Queries are written once with ? placeholders and rebound to $n for Postgres.

MONEY AND TIME:

	Amounts are stored as integer cents, times as UTC unix milliseconds. Balance
	changes are relative increments (balance_cents = balance_cents + ?) so the
	database serialises concurrent writers instead of the application.

SCHEMA:

	Versioned golang-migrate migrations under migrations/<driver>, applied by
	Open on a separate connection.
*/
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"networth/internal/core"
	"networth/internal/ledger"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func (d Driver) sqlDriverName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Driver) dsn(raw string) string {
	if d == DriverPostgres || strings.Contains(raw, "_pragma=") {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Options selects and configures the backing database.
type Options struct {
	Driver Driver
	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string
	// SkipMigrations leaves the schema untouched; ledgerctl migrate runs them explicitly.
	SkipMigrations bool
}

// Store is the SQL implementation of ledger.Store.
type Store struct {
	db      *sql.DB
	driver  Driver
	queries *queries
}

var _ ledger.Store = (*Store)(nil)

// Open connects, pings and migrates the database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	switch opts.Driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver.sqlDriverName(), opts.Driver.dsn(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !opts.SkipMigrations {
		if _, err := RunMigrations(opts.Driver, opts.DSN); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &Store{
		db:      db,
		driver:  opts.Driver,
		queries: &queries{db: db, driver: opts.Driver},
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Driver() Driver {
	return s.driver
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StoreTransactionError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx, driver: s.driver}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &core.StoreTransactionError{Op: "commit", Err: err}
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.queries.GetTransaction(ctx, userID, id)
}

func (s *Store) GetExpenseByTransaction(ctx context.Context, userID, transactionID string) (core.ExpenseRecord, bool, error) {
	return s.queries.GetExpenseByTransaction(ctx, userID, transactionID)
}

func (s *Store) CategoryName(ctx context.Context, userID, categoryID string) (string, error) {
	return s.queries.CategoryName(ctx, userID, categoryID)
}

func (s *Store) HasBankAccount(ctx context.Context, userID, id string) (bool, error) {
	return s.queries.HasBankAccount(ctx, userID, id)
}

func (s *Store) HasCreditCard(ctx context.Context, userID, id string) (bool, error) {
	return s.queries.HasCreditCard(ctx, userID, id)
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
