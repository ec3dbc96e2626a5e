package redislock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl, WithPollInterval(2*time.Millisecond)), mr
}

func TestLockAndUnlock(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)

	unlock, err := locker.Lock(context.Background(), "pipeline:1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:pipeline:1"))

	unlock()
	assert.False(t, mr.Exists("lock:pipeline:1"))

	// Second call is a no-op.
	unlock()
}

func TestLockTimesOutWhileHeld(t *testing.T) {
	locker, _ := newTestLocker(t, 50*time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "pipeline:1")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(context.Background(), "pipeline:1")
	require.ErrorIs(t, err, ErrNotAcquired)
}

func TestUnlockDoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)

	unlock, err := locker.Lock(context.Background(), "pipeline:1")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("lock:pipeline:1", "someone-else"))
	unlock()

	got, err := mr.Get("lock:pipeline:1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLockSerialisesHolders(t *testing.T) {
	locker, _ := newTestLocker(t, time.Second)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "pipeline:1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Dial(context.Background(), "redis://"+mr.Addr(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	unlock, err := New(client, time.Second).Lock(context.Background(), "dial")
	require.NoError(t, err)
	unlock()

	_, err = Dial(context.Background(), "not a url", false)
	require.Error(t, err)
}
