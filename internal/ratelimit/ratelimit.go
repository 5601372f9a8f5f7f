// Package ratelimit bounds how often a key (email, client IP) may perform an action within a window.
package ratelimit

import (
	"context"
	"time"
)

// Rule names one limit. A disabled rule allows everything.
type Rule struct {
	Name    string
	Limit   int
	Window  time.Duration
	Enabled bool
}

// RetryAfterSeconds is the Retry-After value for a rejected request (whole seconds, at least 1).
func (r Rule) RetryAfterSeconds() int {
	s := int(r.Window / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// Limiter counts hits per (rule, key). Allow reports false once Limit hits were seen in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (bool, error)
	// Reset forgets the hits counted for key under rule.
	Reset(ctx context.Context, key string, rule Rule) error
}

func redisKey(rule Rule, key string) string {
	return "rl:" + rule.Name + ":" + key
}
