// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite, so the
// binary needs no C toolchain. Schema changes live in migrations/*.sql and
// are applied with golang-migrate from the embedded filesystem.
//
// One DB value serves all three repositories (items, users, sessions):
//
//	db, err := sqlite.New("data/manhwee.db")
//	if err != nil { ... }
//	defer db.Close()
//
// SCHEMA:
// Each migration is a numbered up/down pair:
//
//	000001 users     → credentials and GitHub accounts
//	000002 items     → collection entries, scoped by owner_id
//	000003 sessions  → one row per login, revoked_at set at logout
//
// Version and MigrateDown exist for the migrate CLI command. New always
// migrates up before returning.
//
// ERRORS:
// sql.ErrNoRows becomes apperror.ErrNotFound and a UNIQUE violation on
// users becomes apperror.ErrConflict. Every other driver error is wrapped
// with the operation that failed; the service layer decides whether it is
// reported as a Persistence error.
//
// TIMESTAMPS:
// Columns are DATETIME; the driver converts time.Time in both directions.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database and applies every pending migration.
//
// dbPath examples:
//   - "data/manhwee.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Open opens the database without touching the schema. The migrate CLI
// command uses it so it can run migrations in either direction.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database,
	// so the pool must never grow past one connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// MigrateUp applies all pending migrations. Running it on an up-to-date
// schema is a no-op.
func (db *DB) MigrateUp() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// MigrateDown rolls back every migration, dropping all tables.
func (db *DB) MigrateDown() error {
	m, err := db.migrator()
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migrations: %w", err)
	}
	return nil
}

// Version reports the current schema version and whether a previous
// migration failed halfway (dirty).
func (db *DB) Version() (uint, bool, error) {
	m, err := db.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrator builds a golang-migrate instance over the embedded SQL files.
//
// The returned *migrate.Migrate is deliberately never closed: closing it
// closes the database driver, which would close db.conn underneath us.
func (db *DB) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(db.conn, &sqlitemigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}
