package thread

import "sync"

// Cache is the in-memory projection of the store's user-to-thread mapping.
// It holds thread IDs only, no timestamps: recency lives in the store, and
// eviction is driven externally by the Janitor. On a miss the caller falls
// back to the store and repopulates via Put.
type Cache struct {
	mu      sync.RWMutex
	threads map[UserID]ID
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{threads: make(map[UserID]ID)}
}

// Get returns the cached thread for the user. The second return is false on
// a miss.
func (c *Cache) Get(userID UserID) (ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.threads[userID]
	return id, ok
}

// Put stores the user's thread.
func (c *Cache) Put(userID UserID, threadID ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.threads[userID] = threadID
}

// Evict removes the user's entry. Evicting an absent user is a no-op.
func (c *Cache) Evict(userID UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.threads, userID)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.threads)
}
