package thread

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. It backs tests and
// storeless deployments where session history does not need to survive a
// restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[UserID]*SessionRecord

	// now is replaceable so tests can control last_used timestamps.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[UserID]*SessionRecord),
		now:     time.Now,
	}
}

// Upsert writes the user's thread and refreshes last_used.
func (s *MemoryStore) Upsert(_ context.Context, userID UserID, threadID ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[userID] = &SessionRecord{
		UserID:   userID,
		ThreadID: threadID,
		LastUsed: s.now(),
	}
	return nil
}

// Get returns the user's thread or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID UserID) (ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return "", ErrNotFound
	}
	return rec.ThreadID, nil
}

// ListStale returns users whose last_used is older than now minus threshold.
func (s *MemoryStore) ListStale(_ context.Context, threshold time.Duration) ([]UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-threshold)
	var stale []UserID
	for id, rec := range s.records {
		if rec.LastUsed.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

// Record returns a copy of the user's record, for tests that need to inspect
// last_used. The second return is false when no record exists.
func (s *MemoryStore) Record(userID UserID) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return SessionRecord{}, false
	}
	return *rec, true
}

// SetNow replaces the store's clock. Test helper.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Close releases nothing; it exists to satisfy Store.
func (*MemoryStore) Close() error { return nil }

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
