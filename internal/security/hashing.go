// Package security holds the session token provider, key loading, and the bcrypt hasher for sign-in codes.
package security

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies short-lived secrets (sign-in codes) using bcrypt.
// Callers must not log or persist the plaintext.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to 4–31.
// Zero or negative means bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret suitable for storage.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored hash in constant time. Returns nil on match,
// bcrypt.ErrMismatchedHashAndPassword on mismatch, or another error for a malformed hash.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}

// Matches is Compare reduced to a bool.
func (h *Hasher) Matches(hash, secret string) bool {
	return h.Compare(hash, []byte(secret)) == nil
}
