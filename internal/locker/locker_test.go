package locker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/merchflow/p2pbot/pkg/models"
)

func newTestLocker(t *testing.T, ttl, wait time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, zaptest.NewLogger(t), ttl, wait, 10*time.Millisecond), mr
}

func TestAcquireNonBlockingBusy(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, time.Second)
	ctx := context.Background()

	held, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestAcquireDistinctNamesIndependent(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, time.Second)
	ctx := context.Background()

	a, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	defer a.Release(ctx)

	b, err := l.Acquire(ctx, models.ExchangeBinance, "owner-2", false)
	require.NoError(t, err)
	defer b.Release(ctx)

	// Default per-scope lock is a third, independent key.
	c, err := l.Acquire(ctx, models.ExchangeBinance, "", false)
	require.NoError(t, err)
	defer c.Release(ctx)
}

func TestReleaseFreesLock(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, time.Second)
	ctx := context.Background()

	held, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	require.NoError(t, held.Release(ctx))

	again, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	defer again.Release(ctx)
}

func TestTTLExpiryFreesLock(t *testing.T) {
	l, mr := newTestLocker(t, 5*time.Second, time.Second)
	ctx := context.Background()

	_, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	held, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	defer held.Release(ctx)
}

func TestBlockingAcquireWaits(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, 2*time.Second)
	ctx := context.Background()

	held, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		lk, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", true)
		if err == nil {
			lk.Release(ctx)
		}
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, held.Release(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("blocking acquire did not return")
	}
}

func TestBlockingAcquireTimesOut(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, 100*time.Millisecond)
	ctx := context.Background()

	held, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = l.Acquire(ctx, models.ExchangeBinance, "owner-1", true)
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestStaleHolderCannotRelease(t *testing.T) {
	l, mr := newTestLocker(t, 5*time.Second, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	fresh, err := l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	require.NoError(t, err)

	// The expired holder's release must not free the new holder's lock.
	require.NoError(t, stale.Release(ctx))
	_, err = l.Acquire(ctx, models.ExchangeBinance, "owner-1", false)
	assert.ErrorIs(t, err, ErrLockBusy)

	require.NoError(t, fresh.Release(ctx))
}
