// Package journal implements the append-only event log (C7): a single
// SQLite-backed events table, monotonic per-iteration sequence numbers, and
// a pure replay fold that reconstructs world-state for resume.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps a SQLite connection dedicated to the event journal.
type Client struct {
	db *sqlx.DB
}

// Open creates (if absent) the journal database file at path, applies
// pending migrations, and returns a ready Client. A single iteration's
// journal is single-writer per spec §5, so the connection pool is
// limited to 1 open connection to serialize writes.
func Open(ctx context.Context, path string) (*Client, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// Close releases the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Only close the migration source; closing m would also close db, which
	// we still need for the lifetime of the Client.
	return sourceDriver.Close()
}
