package repository

import (
	"context"
	"time"

	"github.com/learning-panda-ai/website/internal/user/domain"
)

// Repository defines persistence for users. Lookups return nil, nil for missing rows.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ResolveVerified finds the user for email or creates it, marking the email verified at now
	// unless it already was. created reports whether a new row was inserted.
	ResolveVerified(ctx context.Context, email string, now time.Time) (u *domain.User, created bool, err error)
	// ResolveOAuth is ResolveVerified for a provider-asserted profile; empty name and image are filled in.
	ResolveOAuth(ctx context.Context, p domain.OAuthProfile, now time.Time) (u *domain.User, created bool, err error)
	// CompleteOnboarding writes the wizard fields and sets onboarded. Returns nil when the user does not exist.
	CompleteOnboarding(ctx context.Context, id string, in domain.Onboarding, now time.Time) (*domain.User, error)
	// UpdateProfile writes p, storing blank fields as NULL. Returns nil when the user does not exist.
	UpdateProfile(ctx context.Context, id string, p domain.Profile, now time.Time) (*domain.User, error)
}
