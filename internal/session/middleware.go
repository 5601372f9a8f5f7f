package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware authenticates requests that carry a credential and attaches the claims.
// Claims are checked against the stored account on every request; when they are stale a
// fresh session is attached and, for cookie sessions, the cookie is re-issued.
// Requests without a valid credential pass through unauthenticated; use RequireSession to reject them.
func Middleware(m *Manager, opts CookieOptions, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		raw := TokenFromRequest(c.Request, opts)
		if raw == "" {
			c.Next()
			return
		}
		claims, err := m.Authenticate(c.Request.Context(), raw)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				log.Error("session check failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			c.Next()
			return
		}
		tok, err := m.Refresh(c.Request.Context(), claims)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			c.Next()
			return
		case err != nil:
			log.Warn("session refresh failed; using the presented claims", zap.String("user_id", claims.UserID()), zap.Error(err))
		case tok != nil:
			claims = tok.Claims
			if fromCookie(c.Request, raw, opts) {
				SetCookie(c.Writer, tok.Value, tok.ExpiresAt, opts)
			}
		}
		c.Set(ginClaimsKey, claims)
		c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireSession rejects unauthenticated requests with 401. Must run after Middleware.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Claims(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func fromCookie(r *http.Request, raw string, opts CookieOptions) bool {
	ck, err := r.Cookie(opts.Name())
	return err == nil && ck.Value == raw
}
