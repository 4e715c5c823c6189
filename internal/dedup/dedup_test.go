package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFingerprintIgnoresSurroundingWhitespace(t *testing.T) {
	key := SubmitterKey("t1", "CUSTOMER", "Jane@Example.com")
	assert.Equal(t, "t1|CUSTOMER|jane@example.com", key)
	assert.Equal(t, Fingerprint(key, "hello"), Fingerprint(key, "  hello\n"))
	assert.NotEqual(t, Fingerprint(key, "hello"), Fingerprint(key, "hello!"))
	assert.NotEqual(t, Fingerprint(key, "hello"), Fingerprint(SubmitterKey("t2", "CUSTOMER", "jane@example.com"), "hello"))
}

func TestMemoryStoreRecallExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "fp", "reply-1", 2*time.Second))

	id, ok, err := store.Recall(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "reply-1", id)

	clock.Advance(2 * time.Second)
	_, ok, err = store.Recall(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreAcquireSerializes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	release, err := store.Acquire(ctx, "k")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Acquire(waitCtx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release2, err := store.Acquire(ctx, "k")
	require.NoError(t, err)
	release2()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "test:", 10*time.Second)
	store.poll = time.Millisecond
	return mr, store
}

func TestRedisStoreRememberAndRecall(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := store.Recall(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember(ctx, "fp", "reply-1", 2*time.Second))
	id, ok, err := store.Recall(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "reply-1", id)
	assert.True(t, mr.Exists("test:reply:recent:fp"))

	mr.FastForward(2 * time.Second)
	_, ok, err = store.Recall(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreAcquireWaitsForRelease(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	release, err := store.Acquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:reply:inflight:k"))

	acquired := make(chan struct{})
	go func() {
		r, err := store.Acquire(ctx, "k")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held marker")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the marker")
	}
}

func TestRedisStoreReleaseKeepsForeignMarker(t *testing.T) {
	mr, store := newTestRedis(t)
	ctx := context.Background()

	release, err := store.Acquire(ctx, "k")
	require.NoError(t, err)

	// Simulate the marker expiring and another node taking it.
	require.NoError(t, mr.Set("test:reply:inflight:k", "someone-else"))
	release()

	got, err := mr.Get("test:reply:inflight:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisStoreAcquireHonorsContext(t *testing.T) {
	_, store := newTestRedis(t)
	ctx := context.Background()

	release, err := store.Acquire(ctx, "k")
	require.NoError(t, err)
	defer release()

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Acquire(waitCtx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
