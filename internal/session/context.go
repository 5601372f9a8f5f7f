package session

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/learning-panda-ai/website/internal/security"
)

type contextKey struct{ name string }

var claimsKey = contextKey{"session_claims"}

// ginClaimsKey is the gin.Context key the middleware stores claims under.
const ginClaimsKey = "session.claims"

// WithClaims returns a context carrying the authenticated session.
func WithClaims(ctx context.Context, claims *security.SessionClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the session claims and true if the request is authenticated.
func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.SessionClaims)
	return c, ok && c != nil
}

// UserIDFromContext returns the authenticated user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return c.UserID(), true
}

// Claims returns the session claims set by Middleware on a gin request.
func Claims(c *gin.Context) (*security.SessionClaims, bool) {
	v, ok := c.Get(ginClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.SessionClaims)
	return claims, ok && claims != nil
}
