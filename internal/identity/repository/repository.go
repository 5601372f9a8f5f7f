package repository

import (
	"context"

	"github.com/learning-panda-ai/website/internal/identity/domain"
)

// Repository defines persistence for identities.
type Repository interface {
	// GetByProviderID returns the identity for (provider, providerID), or nil if not linked.
	GetByProviderID(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error)
	// Link records i. Linking an already linked (provider, providerID) is a no-op.
	Link(ctx context.Context, i *domain.Identity) error
}
