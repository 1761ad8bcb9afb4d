package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite-backed contact store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS contacts (
		name_key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		number TEXT NOT NULL,
		relationship TEXT NOT NULL DEFAULT '',
		requires_consent INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_priority ON contacts(priority) WHERE priority > 0;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save inserts or updates one entry.
func (s *SQLiteStore) Save(ctx context.Context, entry Entry) error {
	query := `
	INSERT INTO contacts (name_key, name, number, relationship, requires_consent, priority, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name_key) DO UPDATE SET
		name = excluded.name,
		number = excluded.number,
		relationship = excluded.relationship,
		requires_consent = excluded.requires_consent,
		priority = excluded.priority,
		updated_at = excluded.updated_at`

	requiresConsent := 0
	if entry.RequiresConsent {
		requiresConsent = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		strings.ToLower(entry.Name), entry.Name, entry.Number,
		entry.Relationship, requiresConsent, int(entry.Priority),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

// Load returns every stored entry.
func (s *SQLiteStore) Load(ctx context.Context) ([]Entry, error) {
	query := `SELECT name, number, relationship, requires_consent, priority FROM contacts`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var requiresConsent, priority int
		if err := rows.Scan(&e.Name, &e.Number, &e.Relationship, &requiresConsent, &priority); err != nil {
			return nil, fmt.Errorf("scan contact row: %w", err)
		}
		e.RequiresConsent = requiresConsent != 0
		e.Priority = Priority(priority)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE name_key = ?`, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Verify SQLiteStore implements Store at compile time.
var _ Store = (*SQLiteStore)(nil)
