// Package locker implements a named, TTL-bounded distributed mutex on
// redis. A lock key is scoped to an exchange plus an arbitrary name
// (owner id, queue name); the empty name selects the per-scope default
// used to serialize session re-authentication.
package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/pkg/models"
)

// ErrLockBusy is returned when the lock is held by someone else and the
// caller asked not to wait, or the bounded wait ran out.
var ErrLockBusy = errors.New("lock busy")

// DefaultName is the per-scope lock used when no name is given.
const DefaultName = "lock"

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker hands out distributed locks backed by a shared redis instance.
type Locker struct {
	rdb   redis.UniversalClient
	log   *zap.Logger
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// New creates a Locker. Zero durations fall back to 300s TTL, 10s
// blocking wait and a 100ms retry step.
func New(rdb redis.UniversalClient, log *zap.Logger, ttl, wait, retry time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &Locker{rdb: rdb, log: log, ttl: ttl, wait: wait, retry: retry}
}

// Lock is a held lock. Release it exactly once; redis expires it after
// the TTL regardless, so a crashed holder cannot deadlock the system.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

func lockKey(scope models.Exchange, name string) string {
	if name == "" {
		name = DefaultName
	}
	return fmt.Sprintf("lock:%s_%s", scope, name)
}

// Acquire takes the lock named scope||name. With blocking=false a held
// lock fails immediately with ErrLockBusy; with blocking=true the call
// retries until the configured wait bound and then fails with
// ErrLockBusy as well.
func (l *Locker) Acquire(ctx context.Context, scope models.Exchange, name string, blocking bool) (*Lock, error) {
	key := lockKey(scope, name)
	token := uuid.NewString()

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return &Lock{locker: l, key: key, token: token}, nil
		}
		if !blocking || time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrLockBusy)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// Release frees the lock if this holder still owns it. A lock that
// already expired is not an error.
func (lk *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lk.locker.rdb, []string{lk.key}, lk.token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", lk.key, err)
	}
	if n == 0 {
		lk.locker.log.Warn("lock expired before release", zap.String("key", lk.key))
	}
	return nil
}
