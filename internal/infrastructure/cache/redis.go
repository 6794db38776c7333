package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/martabakCode/lofi-backend-sub001/internal/domain/credit"

	"github.com/redis/go-redis/v9"
)

func OpenRedis(addr string, db int) (*redis.Client, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}

var _ credit.Cache = (*RedisCache)(nil)

const (
	scanCount = 100

	// genTTL only has to outlive one fill; it keeps idle counters from piling up.
	genTTL = 24 * time.Hour
)

// putIfGenScript sets KEYS[1] only while the counter at KEYS[2] still reads ARGV[2].
var putIfGenScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[2]) or "0"
if cur ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// RedisCache stores string values with a fixed TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (c *RedisCache) Generation(ctx context.Context, genKey string) (int64, error) {
	n, err := c.rdb.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", genKey, err)
	}
	return n, nil
}

// Bump moves the counter on and refreshes its expiry in one transaction.
func (c *RedisCache) Bump(ctx context.Context, genKey string) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.PExpire(ctx, genKey, genTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis incr %s: %w", genKey, err)
	}
	return nil
}

func (c *RedisCache) PutIfGeneration(ctx context.Context, key, value, genKey string, gen int64) (bool, error) {
	n, err := putIfGenScript.Run(ctx, c.rdb, []string{key, genKey},
		value, strconv.FormatInt(gen, 10), c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return n == 1, nil
}

func (c *RedisCache) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis unlink: %w", err)
	}
	return nil
}

// EvictPrefix collects the whole SCAN before deleting anything; deleting
// between pages lets the cursor skip keys.
func (c *RedisCache) EvictPrefix(ctx context.Context, prefix string) error {
	var (
		cursor uint64
		found  []string
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s*: %w", prefix, err)
		}
		found = append(found, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	for len(found) > 0 {
		n := min(len(found), scanCount)
		if err := c.Evict(ctx, found[:n]...); err != nil {
			return err
		}
		found = found[n:]
	}
	return nil
}
