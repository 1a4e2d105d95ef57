package redeem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits how many failed redemptions an account may make within a
// window.
type Throttle interface {
	Blocked(ctx context.Context, accountID int64) (bool, error)
	RecordFailure(ctx context.Context, accountID int64) error
	Reset(ctx context.Context, accountID int64) error
}

// RedisThrottle counts failures in a fixed window keyed per account.
type RedisThrottle struct {
	client      *redis.Client
	maxFailures int
	window      time.Duration
}

func NewRedisThrottle(client *redis.Client, maxFailures int, window time.Duration) *RedisThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisThrottle{client: client, maxFailures: maxFailures, window: window}
}

func throttleKey(accountID int64) string {
	return "redeem:failures:" + strconv.FormatInt(accountID, 10)
}

func (t *RedisThrottle) Blocked(ctx context.Context, accountID int64) (bool, error) {
	if t.maxFailures <= 0 {
		return false, nil
	}
	n, err := t.client.Get(ctx, throttleKey(accountID)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read failures: %w", err)
	}
	return n >= t.maxFailures, nil
}

// RecordFailure counts a failure. The window key is created with its TTL and
// incremented in one MULTI, so a counter never outlives its window.
func (t *RedisThrottle) RecordFailure(ctx context.Context, accountID int64) error {
	key := throttleKey(accountID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, t.window)
		pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func (t *RedisThrottle) Reset(ctx context.Context, accountID int64) error {
	if err := t.client.Del(ctx, throttleKey(accountID)).Err(); err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}
	return nil
}
