package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a single-process fixed-window limiter, used when no Redis is configured.
type MemoryLimiter struct {
	mu   sync.Mutex
	m    map[string]*window
	nowF func() time.Time
}

// NewMemoryLimiter returns an empty limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{m: make(map[string]*window), nowF: time.Now}
}

// WithClock overrides the clock. Tests only.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.nowF = now
	return l
}

// Allow counts a hit for key under rule.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	if !rule.Enabled || rule.Limit <= 0 {
		return true, nil
	}
	now := l.nowF()
	k := redisKey(rule, key)

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.m[k]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rule.Window)}
		l.m[k] = w
		l.pruneLocked(now)
	}
	w.count++
	return w.count <= rule.Limit, nil
}

// Reset clears the counter for key.
func (l *MemoryLimiter) Reset(ctx context.Context, key string, rule Rule) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.m, redisKey(rule, key))
	return nil
}

func (l *MemoryLimiter) pruneLocked(now time.Time) {
	for k, w := range l.m {
		if !now.Before(w.resetAt) {
			delete(l.m, k)
		}
	}
}
