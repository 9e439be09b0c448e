// Package store implements the Artifact Store (C5): schema validation of
// agent-produced JSON against the target kind's schema, and persistence of
// artifact instances (with their retry count, quality score and verified
// flag) to SQLite. The world-state the Scheduler reads is replayed from
// the journal, not read from this store.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the SQLite connection backing the artifact store. It opens
// the same per-iteration database file as pkg/journal.Client — spec §4.7/§6
// calls for "a relational file" per iteration, and the artifacts table and
// events table coexist in it as two independent, separately migrated
// schemas (distinguished by migration-table name so golang-migrate doesn't
// confuse the two schema histories).
type Client struct {
	db *sqlx.DB
}

// Open opens (creating if absent) the artifact store at path and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Client, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping artifact store: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run store migrations: %w", err)
	}

	return &Client{db: db}, nil
}

// Close releases the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: "schema_migrations_store"})
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

	return sourceDriver.Close()
}
