package thread

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically evicts cache entries for users the store reports as
// stale. It never deletes durable records: staleness only affects the
// performance cache, not history. A failed store query is logged and retried
// on the next cycle.
type Janitor struct {
	store     Store
	cache     *Cache
	interval  time.Duration
	threshold time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a janitor sweeping the cache every interval, evicting
// users inactive for longer than threshold.
func NewJanitor(store Store, cache *Cache, interval, threshold time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	return &Janitor{
		store:     store,
		cache:     cache,
		interval:  interval,
		threshold: threshold,
		logger:    logger.With("component", "janitor"),
	}
}

// Start launches the background sweep goroutine. It runs until Close is
// called.
func (j *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one eviction cycle. It is exposed so callers and tests can run
// a cycle without waiting for the ticker.
func (j *Janitor) Sweep(ctx context.Context) {
	stale, err := j.store.ListStale(ctx, j.threshold)
	if err != nil {
		j.logger.Warn("stale listing failed, retrying next cycle", "error", err)
		return
	}

	evicted := 0
	for _, userID := range stale {
		if _, ok := j.cache.Get(userID); ok {
			j.cache.Evict(userID)
			evicted++
		}
	}
	if evicted > 0 {
		j.logger.Info("evicted idle cache entries", "count", evicted)
	}
}

// Close stops the sweep goroutine and waits for it to exit. It is safe to
// call Close even if Start was never called.
func (j *Janitor) Close() error {
	if j.cancel != nil {
		j.cancel()
		<-j.done
	}
	return nil
}
