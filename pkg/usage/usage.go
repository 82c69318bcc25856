// Package usage records per-run token consumption for billing and abuse
// review.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calibot/assistant-relay/pkg/thread"
)

// Record is one run's token accounting.
type Record struct {
	ID               string        `json:"id"`
	UserID           thread.UserID `json:"user_id"`
	ThreadID         thread.ID     `json:"thread_id"`
	Model            string        `json:"model,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewRecord creates a record for the given run, stamped with the current
// time.
func NewRecord(userID thread.UserID, threadID thread.ID, model string, prompt, completion, total int) Record {
	return Record{
		ID:               uuid.NewString(),
		UserID:           userID,
		ThreadID:         threadID,
		Model:            model,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
		Timestamp:        time.Now(),
	}
}

// Recorder persists usage records.
type Recorder interface {
	// Record stores one usage record.
	Record(ctx context.Context, rec Record) error

	// Query retrieves records matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// Close releases resources.
	Close() error
}

// Filter defines criteria for querying usage records.
type Filter struct {
	UserID    thread.UserID
	ThreadID  thread.ID
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}
