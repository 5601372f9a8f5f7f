package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditdomain "github.com/learning-panda-ai/website/internal/audit/domain"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/session"
	"github.com/learning-panda-ai/website/internal/user/domain"
	"github.com/learning-panda-ai/website/internal/user/repository"
	"github.com/learning-panda-ai/website/internal/user/service"
)

type stubActivity []*auditdomain.AuditLog

func (s stubActivity) ListByUser(context.Context, string, int) ([]*auditdomain.AuditLog, error) {
	return s, nil
}

type testEnv struct {
	router   *gin.Engine
	repo     *repository.MemoryRepository
	sessions *session.Manager
	cookie   *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tp, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	sessions := session.NewManager(tp, nil)
	cookies := session.CookieOptions{}

	repo := repository.NewMemoryRepository()
	repo.Put(&domain.User{ID: "u1", Email: "a@example.com", Name: "a", Courses: []string{}, CreatedAt: time.Now()})
	activity := stubActivity{{ID: "1", UserID: "u1", Action: auditdomain.ActionLoginSuccess, Resource: auditdomain.ResourceAuthentication, IP: "203.0.113.7", CreatedAt: time.Now()}}
	svc := service.NewService(repo, activity, nil, nil, nil)

	r := gin.New()
	r.Use(session.Middleware(sessions, cookies, nil))
	NewHandler(svc, sessions, cookies, nil).Register(r)

	tok, err := sessions.Establish(context.Background(), security.SessionSubject{UserID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	return &testEnv{
		router:   r,
		repo:     repo,
		sessions: sessions,
		cookie:   &http.Cookie{Name: session.DevCookieName, Value: tok.Value},
	}
}

func (e *testEnv) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/me/activity"},
		{http.MethodPost, "/api/onboarding"},
		{http.MethodPatch, "/api/user/profile"},
	} {
		w := env.do(rt.method, rt.path, `{}`, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/me", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["id"])
	assert.Equal(t, "a@example.com", body["email"])
	assert.Equal(t, false, body["onboarded"])
	assert.Equal(t, []any{}, body["courses"])
}

func TestActivity(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/me/activity?limit=5", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"login_success"`)
}

func TestOnboarding(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/onboarding",
		`{"firstName":"Sam","lastName":"Student","grade":"8","courses":["math","science"],"aiTutor":"panda","parentEmail":"p@example.com"}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User struct {
			ID        string   `json:"id"`
			FirstName string   `json:"firstName"`
			Courses   []string `json:"courses"`
			Onboarded bool     `json:"onboarded"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.User.ID)
	assert.Equal(t, "Sam", body.User.FirstName)
	assert.Equal(t, []string{"math", "science"}, body.User.Courses)
	assert.True(t, body.User.Onboarded)

	var reissued *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DevCookieName {
			reissued = c
		}
	}
	require.NotNil(t, reissued, "onboarding must re-issue the session cookie")
	claims, err := env.sessions.Authenticate(context.Background(), reissued.Value)
	require.NoError(t, err)
	assert.True(t, claims.Onboarded)
}

func TestOnboarding_Invalid(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/onboarding", `{`, true).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/onboarding", `{"firstName":""}`, true).Code)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPatch, "/api/user/profile", `{"firstName":"Sam","lastName":"Student","city":""}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	u, err := env.repo.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sam Student", u.Name)
}

func TestMe_UserGone(t *testing.T) {
	env := newTestEnv(t)
	tok, err := env.sessions.Establish(context.Background(), security.SessionSubject{UserID: "ghost"})
	require.NoError(t, err)
	env.cookie = &http.Cookie{Name: session.DevCookieName, Value: tok.Value}
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/me", "", true).Code)
}
