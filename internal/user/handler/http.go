// Package handler serves the signed-in user's profile, onboarding and activity over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/learning-panda-ai/website/internal/audit/domain"
	"github.com/learning-panda-ai/website/internal/session"
	"github.com/learning-panda-ai/website/internal/user/domain"
	"github.com/learning-panda-ai/website/internal/user/service"
)

// UserService is the account API used by the handler.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	CompleteOnboarding(ctx context.Context, id string, in domain.Onboarding) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error)
	Activity(ctx context.Context, id string, limit int) ([]*auditdomain.AuditLog, error)
}

// Handler serves /api/me, /api/onboarding and /api/user/profile.
type Handler struct {
	users    UserService
	sessions *session.Manager
	cookies  session.CookieOptions
	log      *zap.Logger
}

// NewHandler returns a Handler. sessions re-issues the cookie after onboarding.
func NewHandler(users UserService, sessions *session.Manager, cookies session.CookieOptions, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, sessions: sessions, cookies: cookies, log: log.Named("user_http")}
}

// Register mounts the routes on r behind RequireSession.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api", session.RequireSession())
	g.GET("/me", h.Me)
	g.GET("/me/activity", h.Activity)
	g.POST("/onboarding", h.Onboarding)
	g.PATCH("/user/profile", h.UpdateProfile)
}

type profileResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
	Name            string     `json:"name"`
	Image           string     `json:"image"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	Grade           string     `json:"grade"`
	ParentName      string     `json:"parentName"`
	ParentMobile    string     `json:"parentMobile"`
	ParentEmail     string     `json:"parentEmail"`
	Courses         []string   `json:"courses"`
	AITutor         string     `json:"aiTutor"`
	Onboarded       bool       `json:"onboarded"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toProfileResponse(u *domain.User) profileResponse {
	courses := u.Courses
	if courses == nil {
		courses = []string{}
	}
	return profileResponse{
		ID:              u.ID,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		Name:            u.Name,
		Image:           u.Image,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		City:            u.City,
		State:           u.State,
		Grade:           u.Grade,
		ParentName:      u.ParentName,
		ParentMobile:    u.ParentMobile,
		ParentEmail:     u.ParentEmail,
		Courses:         courses,
		AITutor:         u.AITutor,
		Onboarded:       u.Onboarded,
		CreatedAt:       u.CreatedAt,
	}
}

// Me returns the signed-in user's profile.
func (h *Handler) Me(c *gin.Context) {
	claims, _ := session.Claims(c)
	u, err := h.users.Get(c.Request.Context(), claims.UserID())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(u))
}

type activityEntry struct {
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity returns recent account events. ?limit= caps the count.
func (h *Handler) Activity(c *gin.Context) {
	claims, _ := session.Claims(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.users.Activity(c.Request.Context(), claims.UserID(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]activityEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, activityEntry{Action: l.Action, Resource: l.Resource, IP: l.IP, CreatedAt: l.CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"activity": out})
}

type onboardingRequest struct {
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	ParentName   string   `json:"parentName"`
	ParentMobile string   `json:"parentMobile"`
	ParentEmail  string   `json:"parentEmail"`
	Grade        string   `json:"grade"`
	Courses      []string `json:"courses"`
	AITutor      string   `json:"aiTutor"`
}

// Onboarding completes the wizard and re-issues the session so it reflects onboarded=true.
func (h *Handler) Onboarding(c *gin.Context) {
	claims, _ := session.Claims(c)
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	u, err := h.users.CompleteOnboarding(c.Request.Context(), claims.UserID(), domain.Onboarding{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		City:         req.City,
		State:        req.State,
		ParentName:   req.ParentName,
		ParentMobile: req.ParentMobile,
		ParentEmail:  req.ParentEmail,
		Grade:        req.Grade,
		Courses:      req.Courses,
		AITutor:      req.AITutor,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	tok, err := h.sessions.Establish(c.Request.Context(), service.SubjectOf(u))
	if err != nil {
		h.log.Error("re-issue session failed", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		session.SetCookie(c.Writer, tok.Value, tok.ExpiresAt, h.cookies)
	}

	courses := u.Courses
	if courses == nil {
		courses = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":        u.ID,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"grade":     u.Grade,
		"courses":   courses,
		"aiTutor":   u.AITutor,
		"onboarded": u.Onboarded,
	}})
}

type profileRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	City         string `json:"city"`
	State        string `json:"state"`
	Grade        string `json:"grade"`
	ParentName   string `json:"parentName"`
	ParentMobile string `json:"parentMobile"`
	ParentEmail  string `json:"parentEmail"`
}

// UpdateProfile applies a settings-page edit.
func (h *Handler) UpdateProfile(c *gin.Context) {
	claims, _ := session.Claims(c)
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	_, err := h.users.UpdateProfile(c.Request.Context(), claims.UserID(), domain.Profile{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		City:         req.City,
		State:        req.State,
		Grade:        req.Grade,
		ParentName:   req.ParentName,
		ParentMobile: req.ParentMobile,
		ParentEmail:  req.ParentEmail,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		// The session outlived its user.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		h.log.Error("user request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}
