package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	telemetrydomain "github.com/learning-panda-ai/website/internal/telemetry/domain"
	userdomain "github.com/learning-panda-ai/website/internal/user/domain"
)

// GoogleClaims is what a verified Google ID token asserts about the signer.
type GoogleClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleService resolves Google sign-ins to users.
type GoogleService struct {
	recorder
	users      UserRepo
	identities IdentityRepo
}

// NewGoogleService returns a GoogleService. Only Now, UpstreamTimeout, Audit, Events, Metrics, Tracer and Log are used from opts.
func NewGoogleService(users UserRepo, identities IdentityRepo, opts Options) *GoogleService {
	opts = opts.withDefaults()
	return &GoogleService{
		recorder:   recorder{opts: opts, log: opts.Log.Named("google")},
		users:      users,
		identities: identities,
	}
}

// SignIn finds the user linked to the Google subject, or resolves one by verified email and links it.
// Unverified Google emails are rejected with ErrEmailNotVerified.
func (s *GoogleService) SignIn(ctx context.Context, claims GoogleClaims, clientIP string) (p *identitydomain.Principal, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "google.SignIn")
	defer func() { endSpan(span, err) }()

	email, ok := NormalizeEmail(claims.Email)
	if strings.TrimSpace(claims.Subject) == "" || !ok {
		s.fail(ctx, "google", telemetrydomain.MethodGoogle, email, "invalid_claims", clientIP)
		return nil, ErrInvalidInput
	}
	if !claims.EmailVerified {
		s.fail(ctx, "google", telemetrydomain.MethodGoogle, email, "email_not_verified", clientIP)
		return nil, ErrEmailNotVerified
	}

	now := s.opts.Now()
	var linked *identitydomain.Identity
	err = runWithTimeout(ctx, s.opts.UpstreamTimeout, func(ctx context.Context) error {
		var err error
		linked, err = s.identities.GetByProviderID(ctx, identitydomain.IdentityProviderGoogle, claims.Subject)
		return err
	})
	if err != nil {
		return nil, classify("lookup google identity", err)
	}
	if linked != nil {
		var u *userdomain.User
		err = runWithTimeout(ctx, s.opts.UpstreamTimeout, func(ctx context.Context) error {
			var err error
			u, err = s.users.GetByID(ctx, linked.UserID)
			return err
		})
		if err != nil {
			return nil, classify("load user", err)
		}
		if u != nil {
			span.SetAttributes(attribute.String("user.id", u.ID), attribute.Bool("user.created", false))
			s.succeed(ctx, u.ID, u.Email, telemetrydomain.MethodGoogle, false, clientIP)
			return principalFrom(u, false), nil
		}
		s.log.Warn("google identity points at a missing user", zap.String("user_id", linked.UserID))
	}

	var (
		u       *userdomain.User
		created bool
	)
	err = runWithTimeout(ctx, s.opts.UpstreamTimeout, func(ctx context.Context) error {
		var err error
		u, created, err = s.users.ResolveOAuth(ctx, userdomain.OAuthProfile{
			Email:         email,
			EmailVerified: true,
			Name:          strings.TrimSpace(claims.Name),
			Picture:       strings.TrimSpace(claims.Picture),
		}, now)
		return err
	})
	if err != nil {
		return nil, classify("resolve user", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.Bool("user.created", created))
	if linked == nil {
		if err := linkIdentity(ctx, s.identities, u.ID, identitydomain.IdentityProviderGoogle, claims.Subject, now); err != nil {
			s.log.Warn("link google identity failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	s.succeed(ctx, u.ID, email, telemetrydomain.MethodGoogle, created, clientIP)
	return principalFrom(u, created), nil
}
