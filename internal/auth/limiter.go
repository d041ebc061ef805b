package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter locks a client out after MaxAttempts failed secrets within Window.
type RedisLimiter struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter returns nil when rdb is nil so callers can pass the result
// straight to NewGate and run without limiting.
func NewRedisLimiter(rdb *redis.Client, maxAttempts int, window time.Duration) Limiter {
	if rdb == nil {
		return nil
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLimiter{rdb: rdb, prefix: "ticket-desk:admin-fail", maxAttempts: maxAttempts, window: window}
}

func (l *RedisLimiter) key(client string) string { return l.prefix + ":" + client }

func (l *RedisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	n, err := l.rdb.Get(ctx, l.key(client)).Int()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return n < l.maxAttempts, nil
}

func (l *RedisLimiter) Fail(ctx context.Context, client string) error {
	key := l.key(client)
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	return err
}

func (l *RedisLimiter) Reset(ctx context.Context, client string) error {
	return l.rdb.Del(ctx, l.key(client)).Err()
}
