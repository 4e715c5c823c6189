package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPollInterval = 20 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the marker only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore shares dedup state between every node pointing at the same Redis.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	lockTTL time.Duration
	poll    time.Duration
}

// NewRedisStore builds a Store. lockTTL bounds how long a crashed holder can keep
// a marker.
func NewRedisStore(client redis.UniversalClient, prefix string, lockTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, lockTTL: lockTTL, poll: defaultPollInterval}
}

func (r *RedisStore) inflightKey(key string) string {
	return r.prefix + "reply:inflight:" + key
}

func (r *RedisStore) recentKey(fingerprint string) string {
	return r.prefix + "reply:recent:" + fingerprint
}

func (r *RedisStore) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.inflightKey(key)
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				_ = releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err()
			}, nil
		}

		timer := time.NewTimer(r.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RedisStore) Recall(ctx context.Context, fingerprint string) (string, bool, error) {
	replyID, err := r.client.Get(ctx, r.recentKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return replyID, true, nil
}

func (r *RedisStore) Remember(ctx context.Context, fingerprint, replyID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.recentKey(fingerprint), replyID, ttl).Err()
}
