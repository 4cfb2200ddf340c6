// Package store persists processed message IDs and run history in SQLite
// so repeated runs never reprocess the same email.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"newsbrief/internal/core"
	"newsbrief/internal/logger"
)

// Store represents the SQLite-backed state store
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the state database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	processedTable := `
	CREATE TABLE IF NOT EXISTS processed_messages (
		message_id   TEXT PRIMARY KEY,
		processed_at DATETIME NOT NULL
	);`

	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id                 TEXT PRIMARY KEY,
		ran_at             DATETIME NOT NULL,
		messages_processed INTEGER  NOT NULL
	);`

	for _, table := range []string{processedTable, runsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// IsProcessed reports whether a message has already been processed.
func (s *Store) IsProcessed(messageID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM processed_messages WHERE message_id = ?", messageID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed message: %w", err)
	}
	return true, nil
}

// MarkProcessed records a message as processed. Re-marking is a no-op.
func (s *Store) MarkProcessed(messageID string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO processed_messages (message_id, processed_at) VALUES (?, ?)",
		messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// FilterUnprocessed returns only the emails that have not been processed yet.
func (s *Store) FilterUnprocessed(emails []core.Email) ([]core.Email, error) {
	unprocessed := make([]core.Email, 0, len(emails))
	for _, e := range emails {
		done, err := s.IsProcessed(e.ID)
		if err != nil {
			return nil, err
		}
		if !done {
			unprocessed = append(unprocessed, e)
		}
	}
	return unprocessed, nil
}

// LastRunTime returns the timestamp of the most recent run, or the zero
// time if the pipeline has never run.
func (s *Store) LastRunTime() (time.Time, error) {
	var ranAt time.Time
	err := s.db.QueryRow(
		"SELECT ran_at FROM runs ORDER BY ran_at DESC LIMIT 1",
	).Scan(&ranAt)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last run: %w", err)
	}
	return ranAt, nil
}

// RecordRun records a completed pipeline run.
func (s *Store) RecordRun(messagesProcessed int) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, ran_at, messages_processed) VALUES (?, ?, ?)",
		uuid.NewString(), time.Now().UTC(), messagesProcessed,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logger.Infof("Run recorded: %d messages processed", messagesProcessed)
	return nil
}

// RecentRuns returns up to limit run records, newest first.
func (s *Store) RecentRuns(limit int) ([]core.RunRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, ran_at, messages_processed FROM runs ORDER BY ran_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunRecord
	for rows.Next() {
		var r core.RunRecord
		if err := rows.Scan(&r.ID, &r.RanAt, &r.MessagesProcessed); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
