package repository

import (
	"context"
	"sync"

	"github.com/learning-panda-ai/website/internal/identity/domain"
)

type providerKey struct {
	provider   domain.IdentityProvider
	providerID string
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu sync.Mutex
	m  map[providerKey]domain.Identity
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{m: make(map[providerKey]domain.Identity)}
}

func (r *MemoryRepository) GetByProviderID(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.m[providerKey{provider, providerID}]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *MemoryRepository) Link(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := providerKey{i.Provider, i.ProviderID}
	if _, ok := r.m[k]; !ok {
		r.m[k] = *i
	}
	return nil
}

// Len returns the number of links.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
