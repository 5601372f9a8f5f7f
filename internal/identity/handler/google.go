package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	"github.com/learning-panda-ai/website/internal/identity/google"
	"github.com/learning-panda-ai/website/internal/identity/service"
)

// GoogleProvider runs the OAuth authorization-code flow.
type GoogleProvider interface {
	AuthCodeURL(state, codeVerifier string) string
	Exchange(ctx context.Context, code, codeVerifier string) (service.GoogleClaims, error)
}

// GoogleSignIn resolves verified Google claims to a user.
type GoogleSignIn interface {
	SignIn(ctx context.Context, claims service.GoogleClaims, clientIP string) (*identitydomain.Principal, error)
}

const oauthCookieTTL = 5 * time.Minute

func (h *Handler) oauthCookieName(base string) string {
	if h.cfg.Cookies.Secure {
		return "__Host-" + base
	}
	return base
}

func (h *Handler) setOAuthCookie(c *gin.Context, base, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.oauthCookieName(base),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handler) oauthCookie(c *gin.Context, base string) string {
	ck, err := c.Request.Cookie(h.oauthCookieName(base))
	if err != nil {
		return ""
	}
	return ck.Value
}

// GoogleLogin runs the bot gate, stores state and PKCE verifier cookies, and redirects to Google.
func (h *Handler) GoogleLogin(c *gin.Context) {
	if err := h.gate.CheckHuman(c.Request.Context(), c.Query("cf_token"), c.ClientIP()); err != nil {
		h.writeError(c, "google", err)
		return
	}
	state, err := google.NewState()
	if err != nil {
		h.writeError(c, "google", err)
		return
	}
	verifier := google.NewVerifier()
	h.setOAuthCookie(c, "lp_oauth_state", state, int(oauthCookieTTL.Seconds()))
	h.setOAuthCookie(c, "lp_oauth_pkce", verifier, int(oauthCookieTTL.Seconds()))
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(state, verifier))
}

// GoogleCallback completes the Google flow and redirects to the post-login page with a session cookie.
func (h *Handler) GoogleCallback(c *gin.Context) {
	wantState := h.oauthCookie(c, "lp_oauth_state")
	verifier := h.oauthCookie(c, "lp_oauth_pkce")
	h.setOAuthCookie(c, "lp_oauth_state", "", -1)
	h.setOAuthCookie(c, "lp_oauth_pkce", "", -1)

	if state := c.Query("state"); state == "" || wantState == "" || state != wantState {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid state"})
		return
	}
	if errParam := c.Query("error"); errParam != "" {
		h.log.Warn("google callback returned error", zap.String("error", errParam))
		c.Redirect(http.StatusFound, "/login")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	if verifier == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing pkce verifier"})
		return
	}

	claims, err := h.google.Exchange(c.Request.Context(), code, verifier)
	if err != nil {
		h.log.Warn("google exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	p, err := h.googleSignIn.SignIn(c.Request.Context(), claims, c.ClientIP())
	if err != nil {
		h.writeError(c, "google", err)
		return
	}
	tok, err := h.sessions.Establish(c.Request.Context(), SubjectFor(p))
	if err != nil {
		h.log.Error("establish session failed", zap.String("user_id", p.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}
	setSessionCookie(c, tok.Value, tok.ExpiresAt, h.cfg)
	c.Redirect(http.StatusFound, h.cfg.PostLoginRedirect)
}
