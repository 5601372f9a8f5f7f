package google

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// NewVerifier returns a PKCE code verifier (RFC 7636, 32 random bytes).
func NewVerifier() string { return oauth2.GenerateVerifier() }

// NewState returns an unguessable OAuth state value.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
