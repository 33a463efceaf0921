// Package db provides the SQLite connection and schema for padlight.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Session ledger - append-only audit of connection, controller and loop events.
	// Never read back to restore state.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			session_id TEXT,
			source TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_session_ledger_type_ts ON session_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_session_ledger_session ON session_ledger(session_id) WHERE session_id IS NOT NULL AND session_id != '';
	`)
	if err != nil {
		return fmt.Errorf("failed to create session_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
