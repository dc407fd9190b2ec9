// Package journal records user-visible notifications so past outcomes can
// be reviewed with the history command.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Entry is a single recorded notification
type Entry struct {
	ID        string
	Level     Level
	Action    string // e.g. "create", "update", "delete", "list"
	ParkID    string
	ParkName  string
	Message   string
	ErrorKind string // classification of the failure, empty on success
	CreatedAt time.Time
}

// Recorder stores notifications
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// Repository handles persistence of journal entries
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository on an opened database
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record saves an entry, assigning its ID and timestamp when unset
func (r *Repository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity (id, level, action, park_id, park_name, message, error_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Level),
		e.Action,
		e.ParkID,
		e.ParkName,
		e.Message,
		e.ErrorKind,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving journal entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, level, action, park_id, park_name, message, error_kind, created_at
		FROM activity
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var level string
		var parkID, parkName, errorKind sql.NullString // Handle potential nulls

		if err := rows.Scan(&e.ID, &level, &e.Action, &parkID, &parkName, &e.Message, &errorKind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Level = Level(level)
		e.ParkID = parkID.String
		e.ParkName = parkName.String
		e.ErrorKind = errorKind.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	return entries, nil
}

// Discard is a Recorder that drops every entry
type Discard struct{}

// Record does nothing
func (Discard) Record(ctx context.Context, e *Entry) error { return nil }
