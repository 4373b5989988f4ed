package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable means Redis could not be reached. fn has not run.
	ErrLockUnavailable = errors.New("slot lock unavailable")
)

// Locker serializes booking attempts for one practitioner at one instant.
type Locker interface {
	WithSlotLock(ctx context.Context, practitionerID int64, at time.Time, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

// SlotKey is the Redis key guarding a practitioner's instant. The instant is
// keyed in UTC seconds so equivalent timestamps share a lock.
func SlotKey(practitionerID int64, at time.Time) string {
	return fmt.Sprintf("lock:slot:%d:%d", practitionerID, at.UTC().Unix())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, practitionerID int64, at time.Time, fn func(ctx context.Context) error) error {
	key := SlotKey(practitionerID, at)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: acquire slot lock: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn directly. The database unique index still guards the slot.
type NoopLocker struct{}

func (NoopLocker) WithSlotLock(ctx context.Context, _ int64, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
