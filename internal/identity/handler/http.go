// Package handler exposes sign-in over HTTP: one-time email codes, bot verification, Google and the session endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/audit"
	auditdomain "github.com/learning-panda-ai/website/internal/audit/domain"
	"github.com/learning-panda-ai/website/internal/botcheck"
	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	"github.com/learning-panda-ai/website/internal/identity/service"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/session"
	"github.com/learning-panda-ai/website/internal/telemetry"
	telemetrydomain "github.com/learning-panda-ai/website/internal/telemetry/domain"
)

// OTPService issues and verifies one-time codes.
type OTPService interface {
	IssueChallenge(ctx context.Context, req service.IssueRequest) error
	VerifyChallenge(ctx context.Context, email, code, clientIP string) (*identitydomain.Principal, error)
}

// HumanVerifier runs bot verification.
type HumanVerifier interface {
	CheckHuman(ctx context.Context, token, clientIP string) error
	VerifyHuman(ctx context.Context, token, clientIP string) error
}

// Config holds the HTTP-level settings for the auth routes.
type Config struct {
	Cookies session.CookieOptions
	// PostLoginRedirect is where the Google callback sends the browser. Default "/login".
	PostLoginRedirect string
}

// Handler serves the auth API.
type Handler struct {
	otp          OTPService
	gate         HumanVerifier
	sessions     *session.Manager
	google       GoogleProvider
	googleSignIn GoogleSignIn
	audit        audit.AuditLogger
	events       telemetry.EventEmitter
	cfg          Config
	log          *zap.Logger
}

// NewHandler returns a Handler. audit and events may be nil.
func NewHandler(otp OTPService, gate HumanVerifier, sessions *session.Manager, auditLog audit.AuditLogger, events telemetry.EventEmitter, cfg Config, log *zap.Logger) *Handler {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PostLoginRedirect == "" {
		cfg.PostLoginRedirect = "/login"
	}
	return &Handler{
		otp:      otp,
		gate:     gate,
		sessions: sessions,
		audit:    auditLog,
		events:   events,
		cfg:      cfg,
		log:      log.Named("auth_http"),
	}
}

// WithGoogle enables the Google sign-in routes.
func (h *Handler) WithGoogle(p GoogleProvider, s GoogleSignIn) *Handler {
	h.google = p
	h.googleSignIn = s
	return h
}

// Register mounts the auth routes on r. Session middleware must already be installed.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/auth/send-otp", h.SendOTP)
	r.POST("/api/auth/verify-otp", h.VerifyOTP)
	r.POST("/api/verify-turnstile", h.VerifyTurnstile)
	r.GET("/api/auth/session", h.Session)
	r.POST("/api/auth/logout", h.Logout)
	if h.google != nil && h.googleSignIn != nil {
		r.GET("/api/auth/google/login", h.GoogleLogin)
		r.GET("/api/auth/google/callback", h.GoogleCallback)
	}
}

type sendOTPRequest struct {
	Email          string `json:"email"`
	TurnstileToken string `json:"turnstileToken"`
}

// SendOTP issues a sign-in code for the email in the body.
func (h *Handler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address."})
		return
	}
	err := h.otp.IssueChallenge(c.Request.Context(), service.IssueRequest{
		Email:    req.Email,
		BotToken: req.TurnstileToken,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, "send-otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP checks the code and establishes a session on success.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, "verify-otp", service.ErrInvalidOrExpiredCode)
		return
	}
	p, err := h.otp.VerifyChallenge(c.Request.Context(), req.Email, req.OTP, c.ClientIP())
	if err != nil {
		h.writeError(c, "verify-otp", err)
		return
	}
	h.establish(c, p)
}

type verifyTurnstileRequest struct {
	Token string `json:"token"`
}

// VerifyTurnstile checks a bot-verification token. It fails closed when no secret is configured.
func (h *Handler) VerifyTurnstile(c *gin.Context) {
	var req verifyTurnstileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing token"})
		return
	}
	err := h.gate.VerifyHuman(c.Request.Context(), req.Token, c.ClientIP())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, botcheck.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server misconfiguration"})
	case errors.Is(err, service.ErrUpstreamTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"success": false, "error": "Turnstile verification timed out"})
	default:
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "Turnstile verification failed"})
	}
}

// Session returns the current user from the session credential.
func (h *Handler) Session(c *gin.Context) {
	claims, ok := session.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, sessionBody(claims))
}

// Logout revokes the session, if any, and clears the cookie. Always 204.
func (h *Handler) Logout(c *gin.Context) {
	if claims, ok := session.Claims(c); ok {
		ctx := c.Request.Context()
		if err := h.sessions.Revoke(ctx, claims); err != nil {
			h.log.Warn("session revoke failed", zap.String("user_id", claims.UserID()), zap.Error(err))
		}
		h.audit.LogEvent(ctx, claims.UserID(), auditdomain.ActionLogout, auditdomain.ResourceSession, "")
		telemetry.EmitAsync(h.events, h.log, &telemetrydomain.AuthEvent{
			EventType: telemetrydomain.EventLogout,
			UserID:    claims.UserID(),
			IP:        c.ClientIP(),
		})
	}
	session.ClearCookie(c.Writer, h.cfg.Cookies)
	c.Status(http.StatusNoContent)
}

func (h *Handler) establish(c *gin.Context, p *identitydomain.Principal) {
	tok, err := h.sessions.Establish(c.Request.Context(), SubjectFor(p))
	if err != nil {
		h.log.Error("establish session failed", zap.String("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	setSessionCookie(c, tok.Value, tok.ExpiresAt, h.cfg)
	c.JSON(http.StatusOK, sessionBody(tok.Claims))
}

func setSessionCookie(c *gin.Context, value string, expiresAt time.Time, cfg Config) {
	session.SetCookie(c.Writer, value, expiresAt, cfg.Cookies)
}

// SubjectFor maps a verified principal to the claims carried in its session.
func SubjectFor(p *identitydomain.Principal) security.SessionSubject {
	return security.SessionSubject{
		UserID:    p.UserID,
		Email:     p.Email,
		Name:      p.Name,
		Picture:   p.Image,
		Onboarded: p.Onboarded,
	}
}

func sessionBody(claims *security.SessionClaims) gin.H {
	return gin.H{
		"user": gin.H{
			"id":        claims.UserID(),
			"email":     claims.Email,
			"name":      claims.Name,
			"image":     claims.Picture,
			"onboarded": claims.Onboarded,
		},
		"expires": claims.ExpiresAtTime().UTC().Format(time.RFC3339),
	}
}

// statusFor maps service errors to an HTTP status and a user-facing message.
func statusFor(op string, err error) (int, string) {
	var rl *service.RateLimitError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid email address."
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		return http.StatusUnauthorized, "Invalid or expired code. Please try again."
	case errors.Is(err, service.ErrEmailNotVerified):
		return http.StatusUnauthorized, "Authentication failed."
	case errors.Is(err, service.ErrBotCheckFailed), errors.Is(err, service.ErrBotCheckUnavailable):
		return http.StatusForbidden, "Human verification failed. Please try again."
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, "Too many requests. Please try again later."
	case errors.Is(err, service.ErrUpstreamTimeout):
		if op == "verify-otp" {
			return http.StatusGatewayTimeout, "We could not confirm your code. Please request a new one."
		}
		return http.StatusGatewayTimeout, "Request timed out. Please try again."
	case errors.Is(err, service.ErrDeliveryFailed):
		return http.StatusInternalServerError, "Failed to send OTP. Please try again."
	default:
		if op == "send-otp" {
			return http.StatusInternalServerError, "Failed to send OTP. Please try again."
		}
		return http.StatusInternalServerError, "Something went wrong"
	}
}

func (h *Handler) writeError(c *gin.Context, op string, err error) {
	code, msg := statusFor(op, err)
	var rl *service.RateLimitError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
	}
	if code >= http.StatusInternalServerError {
		h.log.Error("auth request failed", zap.String("op", op), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": msg})
}
