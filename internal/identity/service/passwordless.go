// Package service implements passwordless sign-in: one-time email codes and Google sign-in.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/audit"
	auditdomain "github.com/learning-panda-ai/website/internal/audit/domain"
	challengedomain "github.com/learning-panda-ai/website/internal/challenge/domain"
	challengerepo "github.com/learning-panda-ai/website/internal/challenge/repository"
	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	"github.com/learning-panda-ai/website/internal/logger"
	"github.com/learning-panda-ai/website/internal/mailer"
	"github.com/learning-panda-ai/website/internal/otp"
	"github.com/learning-panda-ai/website/internal/ratelimit"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/telemetry"
	telemetrydomain "github.com/learning-panda-ai/website/internal/telemetry/domain"
	telemetryotel "github.com/learning-panda-ai/website/internal/telemetry/otel"
	userdomain "github.com/learning-panda-ai/website/internal/user/domain"
)

const tracerName = "learningpanda.auth"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases email and reports whether the result looks like an address.
func NormalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	return email, emailPattern.MatchString(email)
}

// ChallengeRepo is the minimal challenge store needed by the passwordless service.
type ChallengeRepo interface {
	Replace(ctx context.Context, c *challengedomain.Challenge) error
	Consume(ctx context.Context, email string, now time.Time, match challengerepo.MatchFunc, then challengerepo.ConsumedFunc) (*challengedomain.Challenge, error)
}

// UserRepo is the minimal user repository needed by the sign-in services.
type UserRepo interface {
	ResolveVerified(ctx context.Context, email string, now time.Time) (*userdomain.User, bool, error)
	ResolveOAuth(ctx context.Context, p userdomain.OAuthProfile, now time.Time) (*userdomain.User, bool, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// IdentityRepo is the minimal identity repository needed by the sign-in services.
type IdentityRepo interface {
	GetByProviderID(ctx context.Context, provider identitydomain.IdentityProvider, providerID string) (*identitydomain.Identity, error)
	Link(ctx context.Context, i *identitydomain.Identity) error
}

// Rules are the rate limits applied to issuance and verification.
type Rules struct {
	IssueEmail  ratelimit.Rule
	IssueIP     ratelimit.Rule
	VerifyEmail ratelimit.Rule
}

// DefaultRules returns the production limits: 5 issues per email and 20 per IP, 10 verify attempts per email, each per 15 minutes.
func DefaultRules() Rules {
	return Rules{
		IssueEmail:  ratelimit.Rule{Name: "otp_issue_email", Limit: 5, Window: 15 * time.Minute, Enabled: true},
		IssueIP:     ratelimit.Rule{Name: "otp_issue_ip", Limit: 20, Window: 15 * time.Minute, Enabled: true},
		VerifyEmail: ratelimit.Rule{Name: "otp_verify_email", Limit: 10, Window: 15 * time.Minute, Enabled: true},
	}
}

// Options carries the optional collaborators. Zero values fall back to production defaults or no-ops.
type Options struct {
	Now             func() time.Time
	Random          otp.RandomSource
	CodeTTL         time.Duration
	UpstreamTimeout time.Duration
	Gate            *Gate
	Rules           Rules
	Audit           audit.AuditLogger
	Events          telemetry.EventEmitter
	Metrics         *telemetryotel.AuthMetrics
	Tracer          trace.Tracer
	Log             *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.Random == nil {
		o.Random = otp.CryptoSource{}
	}
	if o.CodeTTL <= 0 {
		o.CodeTTL = challengerepo.DefaultChallengeTTL
	}
	if o.Gate == nil {
		o.Gate = NewGate(nil, false, nil, o.Metrics, o.Log)
	}
	if o.Audit == nil {
		o.Audit = audit.Nop{}
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// IssueRequest is a request for a sign-in code.
type IssueRequest struct {
	Email    string
	BotToken string
	ClientIP string
}

// PasswordlessService issues and verifies one-time email codes.
type PasswordlessService struct {
	recorder
	challenges ChallengeRepo
	users      UserRepo
	identities IdentityRepo
	hasher     *security.Hasher
	sender     mailer.Sender
}

// NewPasswordlessService returns a PasswordlessService with the given dependencies.
func NewPasswordlessService(
	challenges ChallengeRepo,
	users UserRepo,
	identities IdentityRepo,
	hasher *security.Hasher,
	sender mailer.Sender,
	opts Options,
) *PasswordlessService {
	opts = opts.withDefaults()
	return &PasswordlessService{
		recorder:   recorder{opts: opts, log: opts.Log.Named("passwordless")},
		challenges: challenges,
		users:      users,
		identities: identities,
		hasher:     hasher,
		sender:     sender,
	}
}

// IssueChallenge replaces any pending code for the email with a fresh one and sends it.
// When delivery fails the new code stays valid until it expires or is replaced.
func (s *PasswordlessService) IssueChallenge(ctx context.Context, req IssueRequest) (err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "passwordless.IssueChallenge")
	defer func() { endSpan(span, err) }()

	email, ok := NormalizeEmail(req.Email)
	if !ok {
		s.opts.Metrics.Failed(ctx, "issue", "invalid_email")
		return ErrInvalidInput
	}
	if err := s.opts.Gate.CheckHuman(ctx, req.BotToken, req.ClientIP); err != nil {
		s.opts.Metrics.Failed(ctx, "issue", "bot_check")
		return err
	}
	// IP first: requests refused by the IP rule must not spend the address's budget.
	if err := s.opts.Gate.Allow(ctx, s.opts.Rules.IssueIP, req.ClientIP); err != nil {
		return err
	}
	if err := s.opts.Gate.Allow(ctx, s.opts.Rules.IssueEmail, email); err != nil {
		return err
	}

	code, err := otp.Generate(s.opts.Random)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := s.hasher.Hash([]byte(code))
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	now := s.opts.Now()
	c := &challengedomain.Challenge{
		ID:        uuid.New().String(),
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.opts.CodeTTL),
		CreatedAt: now,
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.challenges.Replace(ctx, c) }); err != nil {
		return classify("store challenge", err)
	}

	masked := logger.MaskEmail(email)
	if err := s.sender.SendOTP(ctx, email, code); err != nil {
		s.log.Warn("code delivery failed", zap.String("email", masked), zap.Error(err))
		s.opts.Metrics.Failed(ctx, "issue", "delivery")
		s.opts.Audit.LogEvent(ctx, "", auditdomain.ActionOTPDeliveryFailed, auditdomain.ResourceAuthentication, metadata("email", masked))
		s.emit(telemetrydomain.EventOTPDeliveryFailed, "", masked, telemetrydomain.MethodEmail, "delivery", req.ClientIP)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: send code: %w", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	s.log.Info("sign-in code issued", zap.String("email", masked))
	s.opts.Metrics.OTPIssued(ctx)
	s.opts.Audit.LogEvent(ctx, "", auditdomain.ActionOTPRequested, auditdomain.ResourceAuthentication, metadata("email", masked))
	s.emit(telemetrydomain.EventOTPRequested, "", masked, telemetrydomain.MethodEmail, "", req.ClientIP)
	return nil
}

// VerifyChallenge consumes the pending code for email and resolves the user, creating it on first sign-in.
// The user upsert runs inside the consume transaction: if it fails the code stays valid.
// Every rejection is ErrInvalidOrExpiredCode. ErrUpstreamTimeout means the code may already be spent.
func (s *PasswordlessService) VerifyChallenge(ctx context.Context, email, code, clientIP string) (p *identitydomain.Principal, err error) {
	ctx, span := s.opts.Tracer.Start(ctx, "passwordless.VerifyChallenge")
	defer func() { endSpan(span, err) }()

	email, ok := NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if !ok || !otp.ValidFormat(code) {
		s.fail(ctx, "verify", telemetrydomain.MethodEmail, email, "malformed", clientIP)
		return nil, ErrInvalidOrExpiredCode
	}
	if err := s.opts.Gate.Allow(ctx, s.opts.Rules.VerifyEmail, email); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	var (
		consumed *challengedomain.Challenge
		u        *userdomain.User
		created  bool
	)
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		consumed, err = s.challenges.Consume(ctx, email, now,
			func(c *challengedomain.Challenge) bool { return s.hasher.Matches(c.CodeHash, code) },
			func(ctx context.Context, _ *challengedomain.Challenge) error {
				var err error
				u, created, err = s.users.ResolveVerified(ctx, email, now)
				if err != nil {
					return fmt.Errorf("resolve user: %w", err)
				}
				return nil
			})
		return err
	})
	if err != nil {
		return nil, classify("consume challenge", err)
	}
	if consumed == nil {
		s.fail(ctx, "verify", telemetrydomain.MethodEmail, email, "no_match", clientIP)
		return nil, ErrInvalidOrExpiredCode
	}
	s.opts.Gate.Reset(ctx, s.opts.Rules.VerifyEmail, email)
	span.SetAttributes(attribute.String("user.id", u.ID), attribute.Bool("user.created", created))
	if err := s.link(ctx, u.ID, identitydomain.IdentityProviderEmail, email, now); err != nil {
		s.log.Warn("link email identity failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	s.succeed(ctx, u.ID, email, telemetrydomain.MethodEmail, created, clientIP)
	return principalFrom(u, created), nil
}

func (s *PasswordlessService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	return runWithTimeout(ctx, s.opts.UpstreamTimeout, fn)
}

func (s *PasswordlessService) link(ctx context.Context, userID string, provider identitydomain.IdentityProvider, providerID string, now time.Time) error {
	if s.identities == nil {
		return nil
	}
	return linkIdentity(ctx, s.identities, userID, provider, providerID, now)
}

// recorder fans sign-in outcomes out to logs, metrics, the audit log and the event stream.
type recorder struct {
	opts Options
	log  *zap.Logger
}

func (r *recorder) fail(ctx context.Context, op, method, email, reason, clientIP string) {
	masked := logger.MaskEmail(email)
	r.opts.Metrics.Failed(ctx, op, reason)
	r.opts.Audit.LogEvent(ctx, "", auditdomain.ActionLoginFailure, auditdomain.ResourceAuthentication, metadata("email", masked, "method", method, "reason", reason))
	r.emit(telemetrydomain.EventLoginFailure, "", masked, method, reason, clientIP)
}

func (r *recorder) succeed(ctx context.Context, userID, email, method string, created bool, clientIP string) {
	r.log.Info("signed in", zap.String("user_id", userID), zap.String("method", method), zap.Bool("created", created))
	r.opts.Metrics.SignedIn(ctx, method)
	r.opts.Audit.LogEvent(ctx, userID, auditdomain.ActionLoginSuccess, auditdomain.ResourceAuthentication, metadata("method", method))
	r.emit(telemetrydomain.EventLoginSuccess, userID, logger.MaskEmail(email), method, "", clientIP)
}

func (r *recorder) emit(eventType, userID, maskedEmail, method, reason, clientIP string) {
	telemetry.EmitAsync(r.opts.Events, r.log, &telemetrydomain.AuthEvent{
		EventType: eventType,
		UserID:    userID,
		Email:     maskedEmail,
		Method:    method,
		Reason:    reason,
		IP:        clientIP,
		CreatedAt: r.opts.Now(),
	})
}

func runWithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func linkIdentity(ctx context.Context, repo IdentityRepo, userID string, provider identitydomain.IdentityProvider, providerID string, now time.Time) error {
	return repo.Link(ctx, &identitydomain.Identity{
		ID:         uuid.New().String(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		CreatedAt:  now,
	})
}

func principalFrom(u *userdomain.User, created bool) *identitydomain.Principal {
	return &identitydomain.Principal{
		UserID:          u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Image:           u.Image,
		EmailVerifiedAt: u.EmailVerifiedAt,
		Onboarded:       u.Onboarded,
		Created:         created,
	}
}

// metadata encodes key/value pairs as a JSON object for the audit log.
func metadata(kv ...string) string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
