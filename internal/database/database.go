package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBPath returns the default location of the local activity database
func DBPath() string {
	return filepath.Join("data", "park-terminal.db")
}

// Open opens the database at dbPath, creating its directory and schema
func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set pragmas for performance
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	_, _ = db.Exec("PRAGMA synchronous=NORMAL")

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the activity table if it does not exist.
// Safe to call multiple times; existing rows are kept.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS activity (
			id TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			action TEXT NOT NULL,
			park_id TEXT,
			park_name TEXT,
			message TEXT NOT NULL,
			error_kind TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating activity table: %w", err)
	}
	return nil
}
