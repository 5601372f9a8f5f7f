// Package devotp keeps the latest sign-in code per email so local development can sign in
// without an email provider (GET /dev/otp). Never enabled in production.
package devotp

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store holds plain sign-in codes by email for dev-only retrieval.
type Store interface {
	// Put records code for email until expiresAt, replacing any earlier code.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email if present and not expired.
	Get(ctx context.Context, email string) (code string, ok bool)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func key(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Put records code for email until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, email, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key(email)] = entry{code: code, expiresAt: expiresAt}
}

// Get returns the code for email. Expired entries are dropped on read.
func (s *MemoryStore) Get(ctx context.Context, email string) (string, bool) {
	k := key(email)
	s.mu.RLock()
	e, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, k)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
