package thread

import "sync"

// Guard admits at most one in-flight request per thread. A second request
// arriving while one is outstanding is not queued; the caller is expected to
// drop it. The set is process-local and rebuilt empty on restart, which is
// safe because it only ever suppresses duplicate processing.
type Guard struct {
	mu     sync.Mutex
	active map[ID]struct{}
}

// NewGuard creates a guard with no active threads.
func NewGuard() *Guard {
	return &Guard{active: make(map[ID]struct{})}
}

// TryAcquire marks the thread as in-flight. It returns false when another
// request already holds the thread, in which case the caller must drop the
// new request. Acquisitions for different threads are independent.
func (g *Guard) TryAcquire(threadID ID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[threadID]; busy {
		return false
	}
	g.active[threadID] = struct{}{}
	return true
}

// Release removes the thread from the in-flight set. Releasing a thread that
// is not held is a no-op, so error paths may release defensively.
func (g *Guard) Release(threadID ID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, threadID)
}

// Active returns the number of in-flight threads.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.active)
}
