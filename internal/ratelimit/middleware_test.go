package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string, Rule) (bool, error) {
	return false, errors.New("redis down")
}

func (errLimiter) Reset(context.Context, string, Rule) error { return errors.New("redis down") }

func newTestRouter(l Limiter, rule Rule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/verify-turnstile", Middleware(l, rule, nil, nil), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func TestMiddleware_RejectsOverLimit(t *testing.T) {
	rule := Rule{Name: "turnstile_ip", Limit: 1, Window: 15 * time.Minute, Enabled: true}
	r := newTestRouter(NewMemoryLimiter(), rule)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verify-turnstile", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verify-turnstile", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestMiddleware_LimiterErrorFailsClosed(t *testing.T) {
	rule := Rule{Name: "turnstile_ip", Limit: 1, Window: time.Minute, Enabled: true}
	r := newTestRouter(errLimiter{}, rule)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verify-turnstile", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMiddleware_DisabledRulePassesThrough(t *testing.T) {
	r := newTestRouter(errLimiter{}, Rule{Name: "off"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verify-turnstile", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
