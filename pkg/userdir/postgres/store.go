// Package postgres provides PostgreSQL storage for the user directory.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calibot/assistant-relay/pkg/thread"
	"github.com/calibot/assistant-relay/pkg/userdir"
)

// Store implements userdir.Directory using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL directory store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert writes the entry, refreshing last_updated.
func (s *Store) Upsert(ctx context.Context, entry userdir.Entry) error {
	query := `
		INSERT INTO user_lookup (user_id, username, display_name, last_updated)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET username = EXCLUDED.username,
		              display_name = EXCLUDED.display_name,
		              last_updated = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, string(entry.UserID), entry.Username, entry.DisplayName)
	if err != nil {
		return fmt.Errorf("upserting user lookup: %w", err)
	}
	return nil
}

// Lookup returns the entry for the user, or nil when unknown.
func (s *Store) Lookup(ctx context.Context, userID thread.UserID) (*userdir.Entry, error) {
	query := `
		SELECT user_id, username, display_name, last_updated
		FROM user_lookup WHERE user_id = $1
	`
	var entry userdir.Entry
	var id string
	err := s.db.QueryRowContext(ctx, query, string(userID)).
		Scan(&id, &entry.Username, &entry.DisplayName, &entry.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Directory specifies nil,nil for unknown users
	}
	if err != nil {
		return nil, fmt.Errorf("querying user lookup: %w", err)
	}
	entry.UserID = thread.UserID(id)
	return &entry, nil
}

// Close releases nothing; the *sql.DB is owned by the caller.
func (*Store) Close() error { return nil }

// Verify interface compliance.
var _ userdir.Directory = (*Store)(nil)
