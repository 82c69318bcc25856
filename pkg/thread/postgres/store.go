// Package postgres provides PostgreSQL storage for session records.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calibot/assistant-relay/pkg/thread"
)

// Store implements thread.Store using PostgreSQL. The user_threads table has
// one row per user; upserts overwrite in place.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL thread store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes the user's thread and refreshes last_used to NOW(), even
// when the thread is unchanged.
func (s *Store) Upsert(ctx context.Context, userID thread.UserID, threadID thread.ID) error {
	query := `
		INSERT INTO user_threads (user_id, thread_id, last_used)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET thread_id = EXCLUDED.thread_id, last_used = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, string(userID), string(threadID))
	if err != nil {
		return fmt.Errorf("upserting thread record: %w", err)
	}
	return nil
}

// Get returns the user's thread. Returns thread.ErrNotFound when no row
// exists; any other error is a storage failure.
func (s *Store) Get(ctx context.Context, userID thread.UserID) (thread.ID, error) {
	query := `SELECT thread_id FROM user_threads WHERE user_id = $1`

	var threadID string
	err := s.db.QueryRowContext(ctx, query, string(userID)).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", thread.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying thread record: %w", err)
	}
	return thread.ID(threadID), nil
}

// ListStale returns users whose last_used is older than now minus threshold.
func (s *Store) ListStale(ctx context.Context, threshold time.Duration) ([]thread.UserID, error) {
	query := `
		SELECT user_id FROM user_threads
		WHERE last_used < NOW() - $1::interval
	`
	rows, err := s.db.QueryContext(ctx, query, fmt.Sprintf("%d seconds", int(threshold.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("listing stale threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stale []thread.UserID
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scanning stale row: %w", err)
		}
		stale = append(stale, thread.UserID(userID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale rows: %w", err)
	}
	return stale, nil
}

// Close releases nothing; the *sql.DB is owned by the caller.
func (*Store) Close() error { return nil }

// Verify interface compliance.
var _ thread.Store = (*Store)(nil)
