// Package postgres provides PostgreSQL storage for usage records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/calibot/assistant-relay/pkg/thread"
	"github.com/calibot/assistant-relay/pkg/usage"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// usageColumns lists columns returned by usage SELECT queries.
var usageColumns = []string{
	"id", "user_id", "thread_id", "model",
	"prompt_tokens", "completion_tokens", "total_tokens", "timestamp",
}

// Store implements usage.Recorder using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL usage store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record stores one usage record.
func (s *Store) Record(ctx context.Context, rec usage.Record) error {
	query := `
		INSERT INTO token_tracking
		(id, user_id, thread_id, model, prompt_tokens, completion_tokens, total_tokens, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.UserID),
		string(rec.ThreadID),
		rec.Model,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

// Query retrieves records matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter usage.Filter) ([]usage.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	qb := psq.Select(usageColumns...).
		From("token_tracking").
		OrderBy("timestamp DESC").
		Limit(uint64(limit))

	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}
	if filter.UserID != "" {
		qb = qb.Where(sq.Eq{"user_id": string(filter.UserID)})
	}
	if filter.ThreadID != "" {
		qb = qb.Where(sq.Eq{"thread_id": string(filter.ThreadID)})
	}
	if filter.StartTime != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *filter.StartTime})
	}
	if filter.EndTime != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *filter.EndTime})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building usage query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []usage.Record
	for rows.Next() {
		var rec usage.Record
		var userID, threadID string
		err := rows.Scan(&rec.ID, &userID, &threadID, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		rec.UserID = thread.UserID(userID)
		rec.ThreadID = thread.ID(threadID)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage rows: %w", err)
	}
	return records, nil
}

// Close releases nothing; the *sql.DB is owned by the caller.
func (*Store) Close() error { return nil }

// Verify interface compliance.
var _ usage.Recorder = (*Store)(nil)
