package repository

import (
	"context"
	"sync"
	"time"

	"github.com/learning-panda-ai/website/internal/challenge/domain"
)

// MemoryRepository is an in-process Repository. A single mutex gives it the same
// replace and consume atomicity as the Postgres transactions.
type MemoryRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Challenge
}

// NewMemoryRepository returns an empty in-memory challenge store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Challenge)}
}

func (r *MemoryRepository) Replace(ctx context.Context, c *domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.byID {
		if existing.Email == c.Email {
			delete(r.byID, id)
		}
	}
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

// Consume holds the store lock while then runs and puts the challenge back if then fails.
func (r *MemoryRepository) Consume(ctx context.Context, email string, now time.Time, match MatchFunc, then ConsumedFunc) (*domain.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.byID {
		if c.Email != email {
			continue
		}
		if c.Expired(now) {
			delete(r.byID, id)
			continue
		}
		if match(c) {
			delete(r.byID, id)
			cp := *c
			if then != nil {
				if err := then(ctx, &cp); err != nil {
					r.byID[id] = c
					return nil, err
				}
			}
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.byID {
		if c.Expired(now) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

// ForEmail returns copies of the stored challenges for email, expired ones included.
func (r *MemoryRepository) ForEmail(email string) []domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Challenge
	for _, c := range r.byID {
		if c.Email == email {
			out = append(out, *c)
		}
	}
	return out
}

// Len returns the number of stored challenges.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
