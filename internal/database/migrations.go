// Package database owns the SQLite schema and migration runner.
package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all available migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_knowledge_entries_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS knowledge_entries (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					title TEXT NOT NULL,
					content TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version: 2,
			Name:    "create_auth_tokens_table",
			SQL: `
				-- Create auth_tokens table for API authentication
				CREATE TABLE IF NOT EXISTS auth_tokens (
					token_id TEXT PRIMARY KEY,
					client_name TEXT NOT NULL,
					hashed_token TEXT NOT NULL UNIQUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					expires_at DATETIME,
					last_used_at DATETIME,
					is_active BOOLEAN DEFAULT 1,
					metadata TEXT DEFAULT '{}'
				);

				CREATE INDEX IF NOT EXISTS idx_auth_tokens_client_name ON auth_tokens (client_name);
				CREATE INDEX IF NOT EXISTS idx_auth_tokens_expires_at ON auth_tokens (expires_at);
				CREATE INDEX IF NOT EXISTS idx_auth_tokens_hashed_token ON auth_tokens (hashed_token);
				CREATE INDEX IF NOT EXISTS idx_auth_tokens_active ON auth_tokens (is_active);
			`,
		},
		{
			Version: 3,
			Name:    "create_index_snapshots_table",
			SQL: `
				-- Single-row cache of the retrieval index: serialized
				-- vectors plus the parallel slot-to-entry mapping. The
				-- knowledge_entries table is always authoritative.
				CREATE TABLE IF NOT EXISTS index_snapshots (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					generation INTEGER NOT NULL,
					embedder TEXT NOT NULL,
					vectors BLOB NOT NULL,
					mapping TEXT NOT NULL,
					built_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}

// Open opens (or creates) the SQLite database at path, applies
// connection settings and pragmas, and runs pending migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ConfigureDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// ConfigureDatabase applies SQLite optimizations
func ConfigureDatabase(db *sql.DB) error {
	// SQLite serializes writes, so limit connections to avoid contention.
	// WAL mode allows concurrent readers, so we allow a few connections.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range GetMigrations() {
		if migration.Version <= currentVersion {
			continue // Already applied
		}

		if err := runMigration(db, migration); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	sql := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := db.Exec(sql)
	return err
}

// getCurrentVersion returns the current schema version
func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration in a transaction
func runMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version, migration.Name,
	); err != nil {
		return err
	}

	return tx.Commit()
}
