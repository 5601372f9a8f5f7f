package ratelimit

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every server instance.
// SET NX PX opens the window with its TTL and INCR counts the hit, in one MULTI,
// so a counter never lives without an expiry. Needs Redis 2.6.12 or later.
type RedisLimiter struct {
	client goredis.Cmdable
}

// NewRedisLimiter returns a limiter backed by client.
func NewRedisLimiter(client goredis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the counter for key and compares it with rule.Limit.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	if !rule.Enabled || rule.Limit <= 0 {
		return true, nil
	}
	k := redisKey(rule, key)
	var incr *goredis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.SetNX(ctx, k, 0, rule.Window)
		incr = p.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: %s: %w", rule.Name, err)
	}
	return incr.Val() <= int64(rule.Limit), nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string, rule Rule) error {
	return l.client.Del(ctx, redisKey(rule, key)).Err()
}
