package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationStatus reports the current schema version of a Postgres store.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// RunMigrations applies every pending migration against a Postgres DSN.
// SQLite stores use GORM AutoMigrate instead (store.go); this path exists
// only for the optional Postgres backend, grounded on the teacher's
// internal/database/migrate.go, adapted to embed the migration set
// (source/iofs) rather than resolve a migrations/ directory relative to
// the running executable.
func RunMigrations(dsn string) error {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, db)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	zap.L().Info("postgres schema migrations applied")
	return nil
}

// MigrationVersion reports the current applied version and dirty flag.
func MigrationVersion(dsn string) (*MigrationStatus, error) {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return nil, err
	}
	defer closeMigrate(m, db)

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("read migration version: %w", err)
	}
	return &MigrationStatus{Version: version, Dirty: dirty}, nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(dsn string) error {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, db)

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// RollbackAll reverts every applied migration.
func RollbackAll(dsn string) error {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, db)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback all migrations: %w", err)
	}
	return nil
}

// MigrateToVersion migrates (up or down) to an exact schema version.
func MigrateToVersion(dsn string, version uint) error {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, db)

	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate to version %d: %w", version, err)
	}
	return nil
}

// Force sets the schema version without running any migration, used to
// clear a dirty state left by a half-applied migration.
func Force(dsn string, version int) error {
	m, db, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m, db)

	if err := m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func newMigrate(dsn string) (*migrate.Migrate, *sql.DB, error) {
	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded migration source: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres connection: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, db, nil
}

func closeMigrate(m *migrate.Migrate, db *sql.DB) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		zap.L().Warn("error closing migration source", zap.Error(srcErr), zap.Error(dbErr))
	}
	db.Close()
}
