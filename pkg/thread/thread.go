// Package thread manages conversation-thread state for relay users.
// It defines the Store interface for durable user-to-thread mappings and the
// in-process structures layered on top of it: the read-through Cache, the
// Janitor that evicts idle cache entries, the single-flight Guard, the
// Resolver that produces a valid thread for a user, and the Sender that
// recovers from threads the backend has expired.
package thread

import (
	"context"
	"errors"
	"time"
)

// UserID identifies a conversation participant. It is opaque to this package
// and is the key for all session state.
type UserID string

// ID identifies a conversation thread held by the assistant backend. The
// backend may expire or delete a thread out-of-band, so an ID is not
// guaranteed to remain valid.
type ID string

// ErrNotFound is returned by Store.Get when no record exists for the user.
// It is distinct from storage failures: a store that cannot be reached must
// return its own error, never ErrNotFound.
var ErrNotFound = errors.New("thread: no record for user")

// SessionRecord is the durable mapping from a user to their current thread.
type SessionRecord struct {
	// UserID is the record's primary key. At most one record exists per user.
	UserID UserID

	// ThreadID is the backend thread currently assigned to the user.
	ThreadID ID

	// LastUsed is refreshed on every resolved access, not only on creation.
	LastUsed time.Time
}

// Store defines durable persistence for session records.
type Store interface {
	// Upsert writes the user's thread and refreshes last_used to now, even
	// when the thread is unchanged. Every access is a liveness signal. A new
	// thread for an existing user overwrites the old record.
	Upsert(ctx context.Context, userID UserID, threadID ID) error

	// Get returns the user's thread. Returns ErrNotFound when no record
	// exists; any other error means the store itself failed.
	Get(ctx context.Context, userID UserID) (ID, error)

	// ListStale returns the users whose last_used is older than now minus
	// threshold.
	ListStale(ctx context.Context, threshold time.Duration) ([]UserID, error)

	// Close releases store resources.
	Close() error
}
