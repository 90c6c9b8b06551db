package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireOnce(t *testing.T) {
	s := NewMemoryStore(time.Minute)

	assert.True(t, s.TryAcquire("stream-1/event-1"), "first acquire wins")
	assert.False(t, s.TryAcquire("stream-1/event-1"), "second acquire loses")
	assert.True(t, s.TryAcquire("stream-1/event-2"), "distinct key is independent")
}

func TestTryAcquireConcurrentSingleWinner(t *testing.T) {
	s := NewMemoryStore(time.Minute)

	const workers = 64
	var winners int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.TryAcquire("contended-key") {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), winners, "exactly one winner under concurrency")
}

func TestRetentionExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	require.True(t, s.TryAcquire("k"))
	require.False(t, s.TryAcquire("k"))

	// Past the retention horizon the key may fire again.
	current = current.Add(2 * time.Minute)
	assert.True(t, s.TryAcquire("k"))
}

func TestEvictExpired(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.TryAcquire("old")
	current = current.Add(90 * time.Second)
	s.TryAcquire("fresh")

	s.evictExpired()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.NotContains(t, s.seen, "old")
	assert.Contains(t, s.seen, "fresh")
}

func TestDeduplicatorShouldNotify(t *testing.T) {
	d := New(NewMemoryStore(time.Minute))

	assert.True(t, d.ShouldNotify("id-1"))
	assert.False(t, d.ShouldNotify("id-1"), "redelivery must not re-trigger")
	assert.True(t, d.ShouldNotify("id-2"))
}
