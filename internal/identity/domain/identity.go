package domain

import "time"

// Identity links a user to one way of signing in.
type Identity struct {
	ID         string
	UserID     string
	Provider   IdentityProvider
	ProviderID string
	CreatedAt  time.Time
}

type IdentityProvider string

const (
	// IdentityProviderEmail is sign-in with a one-time code; ProviderID is the normalized email.
	IdentityProviderEmail IdentityProvider = "email"
	// IdentityProviderGoogle is Google sign-in; ProviderID is the OIDC subject.
	IdentityProviderGoogle IdentityProvider = "google"
)

// Principal is the verified identity handed to the session layer.
type Principal struct {
	UserID          string
	Email           string
	Name            string
	Image           string
	EmailVerifiedAt *time.Time
	Onboarded       bool
	// Created is true when this sign-in created the user.
	Created bool
}
