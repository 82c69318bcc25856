package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrThreadNotFound is the distinguished staleness signal: the backend no
// longer recognizes the thread. Backend clients must map their "thread does
// not exist" failure onto this sentinel (wrapped is fine); generic failures
// must not match it.
var ErrThreadNotFound = errors.New("thread: backend no longer recognizes thread")

// SendFunc performs one backend send attempt against the given thread.
type SendFunc func(ctx context.Context, threadID ID) error

// Sender wraps a backend send with the stale-thread recovery protocol: when
// the attempt fails with ErrThreadNotFound, the sender creates a replacement
// thread, persists it, and retries exactly once. Any other failure is
// surfaced untouched, and a failed retry gets no third attempt.
type Sender struct {
	store   Store
	cache   *Cache
	backend Creator
	logger  *slog.Logger
}

// NewSender creates a sender over the given store, cache, and backend.
func NewSender(store Store, cache *Cache, backend Creator, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		store:   store,
		cache:   cache,
		backend: backend,
		logger:  logger.With("component", "sender"),
	}
}

// Send runs send against threadID, recovering once from a stale thread. It
// returns the thread the payload finally landed on, which differs from
// threadID only after a successful recovery. Callers holding the single-
// flight guard keep it across both attempts; the whole call is one logical
// request cycle.
func (s *Sender) Send(ctx context.Context, userID UserID, threadID ID, send SendFunc) (ID, error) {
	err := send(ctx, threadID)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, ErrThreadNotFound) {
		return threadID, err
	}

	s.logger.Warn("thread expired at backend, recreating", "user_id", userID, "thread_id", threadID)

	replacement, err := s.backend.CreateThread(ctx)
	if err != nil {
		return threadID, fmt.Errorf("recreating expired thread: %w", err)
	}
	if err := s.store.Upsert(ctx, userID, replacement); err != nil {
		return threadID, fmt.Errorf("persisting replacement thread: %w", err)
	}
	s.cache.Put(userID, replacement)

	if err := send(ctx, replacement); err != nil {
		return replacement, err
	}
	return replacement, nil
}
