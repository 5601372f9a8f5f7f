// Package botcheck verifies human-verification tokens before sensitive actions
// (sign-in code issuance, Google sign-in). Tokens are single-use and never retried.
package botcheck

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when no server secret is set. Callers fail closed.
	ErrNotConfigured = errors.New("botcheck: secret not configured")
	// ErrUnavailable is returned when the verification service could not be reached or answered unexpectedly.
	ErrUnavailable = errors.New("botcheck: verification service unavailable")
)

// Verifier checks a client token. A false result with nil error means the token was rejected.
type Verifier interface {
	Verify(ctx context.Context, token, clientIP string) (bool, error)
}

// Disabled accepts every token. Development only (BOTCHECK_ENABLED=false).
type Disabled struct{}

// Verify always returns true.
func (Disabled) Verify(context.Context, string, string) (bool, error) { return true, nil }
