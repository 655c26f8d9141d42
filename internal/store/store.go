// Package store keeps the backend's emails, prompt templates and drafts in
// SQLite. JSON-shaped fields are stored as TEXT.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/mailagent/internal/logger"
	"github.com/comigor/mailagent/internal/mail"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS emails (
    id TEXT PRIMARY KEY,
    sender TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    timestamp TEXT,
    read INTEGER NOT NULL DEFAULT 0,
    category TEXT,
    action_items TEXT,
    summary TEXT,
    processed INTEGER NOT NULL DEFAULT 0,
    processing_error TEXT
);
CREATE TABLE IF NOT EXISTS prompts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    template TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS drafts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email_id TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    created_at TEXT,
    suggested_follow_ups TEXT,
    draft_metadata TEXT
);`

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path, applies the
// schema and seeds the default prompt templates.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.SeedPrompts(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Info("store opened", "path", path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeJSON(ns sql.NullString, v any) error {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), v)
}

func encodeTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func decodeTime(ns sql.NullString) (mail.Timestamp, error) {
	if !ns.Valid || ns.String == "" {
		return mail.Timestamp{}, nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return mail.Timestamp{}, err
	}
	return mail.Timestamp{Time: t}, nil
}
