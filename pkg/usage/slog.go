package usage

import (
	"context"
	"log/slog"
)

// SlogRecorder writes usage records to the structured log. It backs
// deployments without a database, where usage is observed rather than
// queried.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a recorder over the given logger.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger.With("component", "usage")}
}

// Record logs the record.
func (r *SlogRecorder) Record(_ context.Context, rec Record) error {
	r.logger.Info("token usage",
		"user_id", rec.UserID,
		"thread_id", rec.ThreadID,
		"model", rec.Model,
		"prompt_tokens", rec.PromptTokens,
		"completion_tokens", rec.CompletionTokens,
		"total_tokens", rec.TotalTokens,
	)
	return nil
}

// Query returns nothing; the log is not queryable.
func (*SlogRecorder) Query(_ context.Context, _ Filter) ([]Record, error) {
	return nil, nil
}

// Close releases nothing.
func (*SlogRecorder) Close() error { return nil }

// Verify interface compliance.
var _ Recorder = (*SlogRecorder)(nil)
