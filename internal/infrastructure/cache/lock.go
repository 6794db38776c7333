package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/credit"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ credit.Locker = (*RedisLocker)(nil)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance SET NX PX lock. The TTL bounds how long a
// crashed holder can keep others waiting.
type RedisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond}
}

// TryAcquire polls until the lock is taken or wait elapses. A zero wait makes a single attempt.
func (l *RedisLocker) TryAcquire(ctx context.Context, key string, wait time.Duration) (*credit.Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			return &credit.Lock{Key: key, Token: token}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%s: %w", key, credit.ErrLockNotAcquired)
		}
		t := time.NewTimer(min(l.retry, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *RedisLocker) Release(ctx context.Context, lk *credit.Lock) error {
	if lk == nil {
		return nil
	}
	n, err := releaseScript.Run(ctx, l.rdb, []string{lk.Key}, lk.Token).Int()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", lk.Key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", lk.Key, credit.ErrLockLost)
	}
	return nil
}
