// Package userdir maintains a denormalized user-id to display-name mapping.
// It is a convenience table for reading usage reports; nothing on the
// session-critical path depends on it.
package userdir

import (
	"context"
	"sync"
	"time"

	"github.com/calibot/assistant-relay/pkg/thread"
)

// Entry maps a user ID to their platform names.
type Entry struct {
	UserID      thread.UserID
	Username    string
	DisplayName string
	LastUpdated time.Time
}

// Directory persists name entries.
type Directory interface {
	// Upsert writes the entry, refreshing last_updated.
	Upsert(ctx context.Context, entry Entry) error

	// Lookup returns the entry for the user, or nil when unknown.
	Lookup(ctx context.Context, userID thread.UserID) (*Entry, error)

	// Close releases resources.
	Close() error
}

// MemoryDirectory implements Directory in memory.
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[thread.UserID]Entry
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[thread.UserID]Entry)}
}

// Upsert writes the entry.
func (d *MemoryDirectory) Upsert(_ context.Context, entry Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry.LastUpdated = time.Now()
	d.entries[entry.UserID] = entry
	return nil
}

// Lookup returns the entry for the user, or nil when unknown.
func (d *MemoryDirectory) Lookup(_ context.Context, userID thread.UserID) (*Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[userID]
	if !ok {
		return nil, nil //nolint:nilnil // Directory specifies nil,nil for unknown users
	}
	return &entry, nil
}

// Close releases nothing.
func (*MemoryDirectory) Close() error { return nil }

// Verify interface compliance.
var _ Directory = (*MemoryDirectory)(nil)
