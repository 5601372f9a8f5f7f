// Package google is the Google OpenID Connect client used for "Sign in with Google".
// It returns identity facts only; user resolution happens in the identity service.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/learning-panda-ai/website/internal/identity/service"
)

// Issuer is Google's OIDC issuer.
const Issuer = "https://accounts.google.com"

// Provider runs the authorization-code flow with PKCE against Google.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New discovers Google's endpoints and returns a Provider.
func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google: client id, secret and redirect url are required")
	}
	p, err := oidc.NewProvider(ctx, Issuer)
	if err != nil {
		return nil, fmt.Errorf("google: discover provider: %w", err)
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     p.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return NewWithConfig(cfg, p.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// NewWithConfig returns a Provider from explicit parts. Tests point it at a local issuer.
func NewWithConfig(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{oauthConfig: cfg, verifier: verifier}
}

// AuthCodeURL builds the consent URL with an S256 code challenge derived from codeVerifier.
func (p *Provider) AuthCodeURL(state, codeVerifier string) string {
	return p.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchange trades the authorization code for tokens and verifies the ID token.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (service.GoogleClaims, error) {
	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return service.GoogleClaims{}, fmt.Errorf("google: token exchange: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return service.GoogleClaims{}, errors.New("google: no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return service.GoogleClaims{}, fmt.Errorf("google: verify id_token: %w", err)
	}
	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return service.GoogleClaims{}, fmt.Errorf("google: parse claims: %w", err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return service.GoogleClaims{}, errors.New("google: id_token missing sub or email")
	}
	return service.GoogleClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
