package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithSlotLockReleasesAfterRun(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), 3, at, func(ctx context.Context) error {
		assert.True(t, mr.Exists(SlotKey(3, at)))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(SlotKey(3, at)))
}

func TestWithSlotLockRejectsConcurrentHolder(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	err := locker.WithSlotLock(context.Background(), 3, at, func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, 3, at, func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, 4, at, func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
}

func TestWithSlotLockPropagatesErrorAndReleases(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), 3, at, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(SlotKey(3, at)))
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second).(*redisSlotLocker)
	key := SlotKey(3, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, mr.Set(key, "someone-else"))

	require.NoError(t, locker.release(context.Background(), key, "mine"))
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestSlotKeyNormalizesZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	utc := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, SlotKey(7, utc), SlotKey(7, utc.In(ist)))
}

func TestWithSlotLockReportsUnreachableRedis(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	mr.Close()

	ran := false
	err := locker.WithSlotLock(context.Background(), 3, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.False(t, ran)
}
