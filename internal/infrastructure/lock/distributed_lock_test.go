package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestTryLockIsExclusive(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	a := NewDistributedLock(client, "k", "a", time.Minute)
	b := NewDistributedLock(client, "k", "b", time.Minute)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx))

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlockDoesNotReleaseForeignLock(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	a := NewDistributedLock(client, "k", "a", time.Second)
	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// a 的锁过期后被 b 持有
	mr.FastForward(2 * time.Second)
	b := NewDistributedLock(client, "k", "b", time.Minute)
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, a.Unlock(ctx), ErrLockExpired)
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestLockGivesUpAfterRetries(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "holder", time.Minute)
	_, err := holder.TryLock(ctx)
	require.NoError(t, err)

	waiter := NewDistributedLock(client, "k", "waiter", time.Minute)
	err = waiter.Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestLockHonoursContext(t *testing.T) {
	_, client := newClient(t)

	holder := NewDistributedLock(client, "k", "holder", time.Minute)
	_, err := holder.TryLock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waiter := NewDistributedLock(client, "k", "waiter", time.Minute)
	err = waiter.Lock(ctx, time.Hour, 5)
	assert.Error(t, err)
}

func TestGuardReleasesAfterRun(t *testing.T) {
	mr, client := newClient(t)
	g := NewGuard(client, time.Minute, time.Millisecond, 5)

	fnErr := errors.New("boom")
	err := g.WithUserAndName(context.Background(), 4, "alice", func() error {
		assert.True(t, mr.Exists(UserLockKey(4)))
		assert.True(t, mr.Exists(NameLockKey("alice")))
		return fnErr
	})
	assert.ErrorIs(t, err, fnErr)
	assert.False(t, mr.Exists(UserLockKey(4)))
	assert.False(t, mr.Exists(NameLockKey("alice")))
}

func TestGuardReportsBusyLock(t *testing.T) {
	_, client := newClient(t)
	g := NewGuard(client, time.Minute, time.Millisecond, 2)

	holder := NewDistributedLock(client, NameLockKey("bob"), "other", time.Minute)
	_, err := holder.TryLock(context.Background())
	require.NoError(t, err)

	called := false
	err = g.WithUserAndName(context.Background(), 1, "bob", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockFailed)
	assert.False(t, called)
}

func TestGuardSerializesSameUser(t *testing.T) {
	_, client := newClient(t)
	g := NewGuard(client, time.Minute, time.Millisecond, 10000)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.WithUser(context.Background(), 9, func() error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
