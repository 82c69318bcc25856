package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Creator is the slice of the assistant backend the session core needs:
// allocating fresh conversation threads.
type Creator interface {
	CreateThread(ctx context.Context) (ID, error)
}

// Resolver produces a valid thread for a user, creating one at the backend
// when none exists. Every resolution refreshes the store's last_used and
// repopulates the cache, so cache hits and store hits count as activity the
// same way creations do.
type Resolver struct {
	store   Store
	cache   *Cache
	backend Creator
	logger  *slog.Logger
}

// NewResolver creates a resolver over the given store, cache, and backend.
func NewResolver(store Store, cache *Cache, backend Creator, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		cache:   cache,
		backend: backend,
		logger:  logger.With("component", "resolver"),
	}
}

// Resolve returns the user's thread, checking the cache, then the store,
// then creating a thread at the backend. Repeated calls for the same user
// return the same thread; a second thread is only ever created after the
// backend explicitly reports the first one stale (see Sender).
//
// A store failure is surfaced as-is. It is never treated as "no thread
// exists": conflating the two would create a duplicate thread every time the
// store blips.
func (r *Resolver) Resolve(ctx context.Context, userID UserID) (ID, error) {
	threadID, ok := r.cache.Get(userID)
	if !ok {
		var err error
		threadID, err = r.store.Get(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			threadID, err = r.backend.CreateThread(ctx)
			if err != nil {
				return "", fmt.Errorf("creating thread for user %s: %w", userID, err)
			}
			r.logger.Info("created thread", "user_id", userID, "thread_id", threadID)
		case err != nil:
			return "", fmt.Errorf("looking up thread for user %s: %w", userID, err)
		}
	}

	// Refresh last_used on every access, then repopulate the cache so the
	// two agree once the resolve completes.
	if err := r.store.Upsert(ctx, userID, threadID); err != nil {
		return "", fmt.Errorf("persisting thread for user %s: %w", userID, err)
	}
	r.cache.Put(userID, threadID)

	return threadID, nil
}
