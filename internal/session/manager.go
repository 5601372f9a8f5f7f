// Package session turns a verified identity into a signed session credential and back.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learning-panda-ai/website/internal/security"
)

// ErrUnauthenticated is returned for a missing, invalid, expired or revoked credential.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// Token is an issued session credential.
type Token struct {
	Value     string
	Claims    *security.SessionClaims
	ExpiresAt time.Time
}

// SubjectLoader returns what a session for userID should carry now, or nil when the account is gone.
type SubjectLoader interface {
	SessionSubject(ctx context.Context, userID string) (*security.SessionSubject, error)
}

// Manager issues, validates and revokes session JWTs.
type Manager struct {
	tokens   *security.TokenProvider
	denylist Denylist
	subjects SubjectLoader
}

// NewManager returns a Manager. A nil denylist means logout only clears the cookie.
func NewManager(tokens *security.TokenProvider, denylist Denylist) *Manager {
	if denylist == nil {
		denylist = NoopDenylist{}
	}
	return &Manager{tokens: tokens, denylist: denylist}
}

// WithSubjectLoader makes Refresh compare sessions against the stored account.
func (m *Manager) WithSubjectLoader(l SubjectLoader) *Manager {
	m.subjects = l
	return m
}

// Establish signs a session for sub.
func (m *Manager) Establish(ctx context.Context, sub security.SessionSubject) (*Token, error) {
	if sub.UserID == "" {
		return nil, errors.New("session: user id is required")
	}
	raw, claims, err := m.tokens.IssueSession(sub)
	if err != nil {
		return nil, fmt.Errorf("session: issue: %w", err)
	}
	return &Token{Value: raw, Claims: claims, ExpiresAt: claims.ExpiresAtTime()}, nil
}

// Authenticate validates raw and checks the denylist. Denylist failures are returned as-is so callers fail closed.
func (m *Manager) Authenticate(ctx context.Context, raw string) (*security.SessionClaims, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := m.tokens.ValidateSession(raw)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("session: denylist: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Revoke denylists the session until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *security.SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	return m.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime())
}

// Refresh reloads the account behind claims. It returns a new token when the stored
// profile (onboarding state, name, picture, email) no longer matches the claims, and
// nil when they agree or no loader is set. A deleted account is ErrUnauthenticated.
func (m *Manager) Refresh(ctx context.Context, claims *security.SessionClaims) (*Token, error) {
	if m.subjects == nil || claims == nil {
		return nil, nil
	}
	sub, err := m.subjects.SessionSubject(ctx, claims.UserID())
	if err != nil {
		return nil, fmt.Errorf("session: load subject: %w", err)
	}
	if sub == nil {
		return nil, ErrUnauthenticated
	}
	if sub.Onboarded == claims.Onboarded && sub.Name == claims.Name &&
		sub.Picture == claims.Picture && sub.Email == claims.Email {
		return nil, nil
	}
	return m.Establish(ctx, *sub)
}
