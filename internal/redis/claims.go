package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobClaims lets several worker instances agree on which one runs a scheduled job.
type JobClaims struct {
	client *redis.Client
}

func NewJobClaims(client *redis.Client) *JobClaims {
	return &JobClaims{client: client}
}

// Claim reports whether the caller won key. The claim expires after ttl.
func (c *JobClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops key so the next Claim for it succeeds.
func (c *JobClaims) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
