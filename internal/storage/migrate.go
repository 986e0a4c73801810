package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationResult reports the schema version before and after a run. Version
// 0 means no migration has been applied.
type MigrationResult struct {
	From uint
	To   uint
}

func (r MigrationResult) Changed() bool { return r.From != r.To }

// RunMigrations applies every pending migration for the given driver.
func RunMigrations(driver Driver, dsn string) (MigrationResult, error) {
	return withMigrator(driver, dsn, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(driver Driver, dsn string, steps int) (MigrationResult, error) {
	if steps < 1 {
		return MigrationResult{}, fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return withMigrator(driver, dsn, func(m *migrate.Migrate) error {
		return m.Steps(-steps)
	})
}

func withMigrator(driver Driver, dsn string, run func(*migrate.Migrate) error) (MigrationResult, error) {
	// Separate connection so migrations do not interfere with the main pool
	migrateDB, err := sql.Open(driver.sqlDriverName(), driver.dsn(dsn))
	if err != nil {
		return MigrationResult{}, fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	var (
		instance database.Driver
		dir      string
	)
	switch driver {
	case DriverPostgres:
		instance, err = migratepgx.WithInstance(migrateDB, &migratepgx.Config{})
		dir = "migrations/postgres"
	default:
		instance, err = sqlite.WithInstance(migrateDB, &sqlite.Config{})
		dir = "migrations/sqlite"
	}
	if err != nil {
		return MigrationResult{}, fmt.Errorf("create %s migrate driver: %w", driver, err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(driver), instance)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	var result MigrationResult
	if result.From, err = schemaVersion(m); err != nil {
		return result, err
	}
	if err := run(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return result, fmt.Errorf("run migrations: %w", err)
	}
	result.To, err = schemaVersion(m)
	return result, err
}

// schemaVersion refuses dirty schemas; a failed migration needs manual repair.
func schemaVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}
