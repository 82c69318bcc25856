package thread

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

const guardTestThread = ID("thread-1")

func TestGuard_AcquireAndRelease(t *testing.T) {
	guard := NewGuard()

	assert.True(t, guard.TryAcquire(guardTestThread))
	assert.False(t, guard.TryAcquire(guardTestThread), "second acquire must fail while held")

	guard.Release(guardTestThread)
	assert.True(t, guard.TryAcquire(guardTestThread), "acquire must succeed after release")
}

func TestGuard_DifferentThreadsIndependent(t *testing.T) {
	guard := NewGuard()

	assert.True(t, guard.TryAcquire(ID("a")))
	assert.True(t, guard.TryAcquire(ID("b")))
	assert.Equal(t, 2, guard.Active())
}

func TestGuard_ReleaseIdempotent(t *testing.T) {
	guard := NewGuard()

	// Never acquired: no-op.
	guard.Release(guardTestThread)

	assert.True(t, guard.TryAcquire(guardTestThread))
	guard.Release(guardTestThread)
	// Double release on an error path must stay a no-op.
	guard.Release(guardTestThread)

	assert.Equal(t, 0, guard.Active())
}

func TestGuard_ConcurrentSameThread(t *testing.T) {
	guard := NewGuard()

	const attempts = 50
	var acquired atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if guard.TryAcquire(guardTestThread) {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load(), "exactly one concurrent acquire may succeed")

	guard.Release(guardTestThread)
	assert.Equal(t, 0, guard.Active(), "guard must end released")
}
