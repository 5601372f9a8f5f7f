package repository

import (
	"context"

	"github.com/learning-panda-ai/website/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListByUser returns the newest entries for userID first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error)
}
