package session

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Denylist records revoked session ids (jti) until their expiry.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NoopDenylist never revokes.
type NoopDenylist struct{}

func (NoopDenylist) Revoke(context.Context, string, time.Time) error { return nil }
func (NoopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisDenylist stores revoked ids as keys that expire with the session.
type RedisDenylist struct {
	client goredis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisDenylist returns a denylist backed by client.
func NewRedisDenylist(client goredis.Cmdable) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "session:revoked:", now: time.Now}
}

func (d *RedisDenylist) key(jti string) string { return d.prefix + jti }

// Revoke stores jti until until. Already-expired sessions need no entry.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.key(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryDenylist is a single-process denylist for runs without Redis.
type MemoryDenylist struct {
	mu   sync.Mutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryDenylist returns an empty denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{m: make(map[string]time.Time), nowF: time.Now}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowF()
	for k, exp := range d.m {
		if !exp.After(now) {
			delete(d.m, k)
		}
	}
	if until.After(now) {
		d.m[jti] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.m[jti]
	return ok && exp.After(d.nowF()), nil
}
