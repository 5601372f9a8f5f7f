// Package handler exposes health over HTTP probes and the standard gRPC health service.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learning-panda-ai/website/internal/health"
)

// ReadinessChecker is implemented by *health.Checker.
type ReadinessChecker interface {
	Run(ctx context.Context) health.Report
}

// HTTP serves /healthz and /readyz.
type HTTP struct {
	checker ReadinessChecker
}

// NewHTTP returns the probe handler. checker may be nil; then /readyz always reports ready.
func NewHTTP(checker ReadinessChecker) *HTTP {
	return &HTTP{checker: checker}
}

// Register mounts the probes on r.
func (h *HTTP) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live reports that the process is serving requests.
func (h *HTTP) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports 200 when every dependency check passes, else 503 with per-check results.
func (h *HTTP) Ready(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	r := h.checker.Run(c.Request.Context())
	if !r.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": r.Results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": r.Results})
}
