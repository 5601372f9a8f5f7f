package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/learning-panda-ai/website/internal/identity/domain"
)

const (
	getByProviderIDSQL = `SELECT id, user_id, provider, provider_id, created_at FROM identities WHERE provider = $1 AND provider_id = $2`
	linkSQL            = `INSERT INTO identities (id, user_id, provider, provider_id, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (provider, provider_id) DO NOTHING`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an identity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByProviderID returns the identity for the given provider and providerID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByProviderID(ctx context.Context, provider domain.IdentityProvider, providerID string) (*domain.Identity, error) {
	var (
		i        domain.Identity
		provText string
	)
	err := r.db.QueryRowContext(ctx, getByProviderIDSQL, string(provider), providerID).
		Scan(&i.ID, &i.UserID, &provText, &i.ProviderID, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.Provider = domain.IdentityProvider(provText)
	return &i, nil
}

// Link persists the identity. The identity must have ID set.
func (r *PostgresRepository) Link(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, linkSQL, i.ID, i.UserID, string(i.Provider), i.ProviderID, i.CreatedAt)
	return err
}
