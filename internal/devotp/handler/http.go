// Package handler exposes the dev OTP store over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/learning-panda-ai/website/internal/devotp"
)

// Handler serves GET /dev/otp?email=... Only mounted when DEV_OTP_ENABLED is true.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a handler reading from store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the dev route on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/dev/otp", h.GetOTP)
}

// GetOTP returns the latest unexpired code for the email query parameter.
func (h *Handler) GetOTP(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	code, ok := h.store.Get(c.Request.Context(), email)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no code found or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"otp": code})
}
