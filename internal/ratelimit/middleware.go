package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys on gin's resolved client IP.
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// Middleware rejects requests over rule with 429 and a Retry-After header.
// Limiter errors fail closed with 500.
func Middleware(limiter Limiter, rule Rule, key KeyFunc, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if key == nil {
		key = ByClientIP
	}
	return func(c *gin.Context) {
		if !rule.Enabled {
			c.Next()
			return
		}
		k := key(c)
		allowed, err := limiter.Allow(c.Request.Context(), k, rule)
		if err != nil {
			log.Error("rate limiter failed", zap.String("rule", rule.Name), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !allowed {
			log.Warn("rate limit exceeded",
				zap.String("rule", rule.Name),
				zap.Int("limit", rule.Limit),
				zap.Duration("window", rule.Window),
			)
			c.Header("Retry-After", strconv.Itoa(rule.RetryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
