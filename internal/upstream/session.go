package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/cache"
	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/pkg/models"
)

// SessionCache is a SessionProvider that keeps credentials in the shared
// TTL store and serializes re-login under the exchange-scoped lock.
// Logging in is non-reentrant and expensive, so only one owner at a time
// may run the login flow, while cached credentials are served freely.
type SessionCache struct {
	cache    *cache.TTLCache
	locks    *locker.Locker
	flow     LoginFlow
	exchange models.Exchange
	ttl      time.Duration
	log      *zap.Logger
}

func NewSessionCache(c *cache.TTLCache, locks *locker.Locker, flow LoginFlow, exchange models.Exchange, ttl time.Duration, log *zap.Logger) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionCache{cache: c, locks: locks, flow: flow, exchange: exchange, ttl: ttl, log: log}
}

func sessionKey(owner string) string {
	return "session:" + owner
}

// GetValidCredential returns the cached credential for owner, running
// the login flow under the global exchange lock when none is cached.
func (s *SessionCache) GetValidCredential(ctx context.Context, ownerID string) (Credential, error) {
	if cred, ok, err := s.cached(ctx, ownerID); err != nil || ok {
		return cred, err
	}

	lock, err := s.locks.Acquire(ctx, s.exchange, "", true)
	if err != nil {
		return Credential{}, fmt.Errorf("session refresh for %s: %w", ownerID, err)
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			s.log.Warn("session lock release failed", zap.Error(rerr))
		}
	}()

	// Another worker may have refreshed while we waited for the lock.
	if cred, ok, err := s.cached(ctx, ownerID); err != nil || ok {
		return cred, err
	}

	s.log.Info("refreshing session", zap.String("owner", ownerID))
	cred, err := s.flow.Login(ctx, ownerID)
	if err != nil {
		return Credential{}, fmt.Errorf("login for %s: %w", ownerID, err)
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return Credential{}, fmt.Errorf("encode credential: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKey(ownerID), string(raw), s.ttl); err != nil {
		// The credential is still valid; the next caller just logs in again.
		s.log.Warn("failed to cache credential", zap.String("owner", ownerID), zap.Error(err))
	}
	return cred, nil
}

func (s *SessionCache) cached(ctx context.Context, ownerID string) (Credential, bool, error) {
	raw, err := s.cache.Get(ctx, sessionKey(ownerID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, err
	}
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return Credential{}, false, fmt.Errorf("decode credential: %w", err)
	}
	return cred, true, nil
}
