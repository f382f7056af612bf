// Package cache provides the redis-backed TTL store shared by all
// workers, plus the orderbook snapshot cache built on top of it. Reads
// are lock-free; staleness is bounded by the TTL. Only the dedupe
// compare-and-swap needs atomicity and runs as a redis script.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

var updateScript = redis.NewScript(`
local old = redis.call("get", KEYS[1])
if old == ARGV[1] then
	return 0
end
redis.call("set", KEYS[1], ARGV[1])
return 1
`)

// TTLCache is a string key/value store with per-key expiry.
type TTLCache struct {
	rdb redis.UniversalClient
}

func NewTTL(rdb redis.UniversalClient) *TTLCache {
	return &TTLCache{rdb: rdb}
}

// Set stores value under key for ttl. A zero ttl stores it without expiry.
func (c *TTLCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Get reads a key, failing with ErrCacheMiss if it is gone.
func (c *TTLCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", key, ErrCacheMiss)
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Delete removes a key. Missing keys are not an error.
func (c *TTLCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", key, err)
	}
	return nil
}

// Update atomically stores value and reports whether it differed from
// what was already there. Used as a change detector: a false return
// means nothing new happened under this key since the last call.
func (c *TTLCache) Update(ctx context.Context, key, value string) (bool, error) {
	n, err := updateScript.Run(ctx, c.rdb, []string{key}, value).Int()
	if err != nil {
		return false, fmt.Errorf("cache update %s: %w", key, err)
	}
	return n == 1, nil
}
