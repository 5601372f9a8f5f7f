package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed for someone else.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims is the signed session credential carried in the session cookie.
// Subject is the user id; ID (jti) identifies the session for revocation.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
	Onboarded bool   `json:"onboarded"`
}

// UserID returns the subject claim.
func (c *SessionClaims) UserID() string { return c.Subject }

// ExpiresAtTime returns exp as a time.Time, or the zero time if absent.
func (c *SessionClaims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// SessionSubject is what a session is issued for.
type SessionSubject struct {
	UserID    string
	Email     string
	Name      string
	Picture   string
	Onboarded bool
}

// TokenProvider issues and validates session JWTs using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on every token and required on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the provider's time source. Returns p for chaining.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.now = now
	return p
}

// IssueSession signs a session token for sub. Returns the token and the claims it carries.
func (p *TokenProvider) IssueSession(sub SessionSubject) (string, *SessionClaims, error) {
	if sub.UserID == "" {
		return "", nil, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", nil, err
	}
	now := p.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.UserID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		Email:     sub.Email,
		Name:      sub.Name,
		Picture:   sub.Picture,
		Onboarded: sub.Onboarded,
	}
	token, err := p.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

// ValidateSession parses the token and checks signature, exp, iss and aud.
// Any failure is reported as ErrInvalidToken.
func (p *TokenProvider) ValidateSession(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
