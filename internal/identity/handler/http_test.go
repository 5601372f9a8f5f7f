package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learning-panda-ai/website/internal/botcheck"
	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	"github.com/learning-panda-ai/website/internal/identity/service"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/session"
)

type fakeOTP struct {
	issueErr  error
	issued    []service.IssueRequest
	principal *identitydomain.Principal
	verifyErr error
}

func (f *fakeOTP) IssueChallenge(_ context.Context, req service.IssueRequest) error {
	f.issued = append(f.issued, req)
	return f.issueErr
}

func (f *fakeOTP) VerifyChallenge(_ context.Context, email, code, _ string) (*identitydomain.Principal, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.principal, nil
}

type fakeGate struct{ check, verify error }

func (g fakeGate) CheckHuman(context.Context, string, string) error { return g.check }
func (g fakeGate) VerifyHuman(context.Context, string, string) error { return g.verify }

type testEnv struct {
	router   *gin.Engine
	otp      *fakeOTP
	sessions *session.Manager
	cookies  session.CookieOptions
}

func newTestEnv(t *testing.T, gate HumanVerifier) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tp, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	env := &testEnv{
		otp:      &fakeOTP{},
		sessions: session.NewManager(tp, session.NewMemoryDenylist()),
		cookies:  session.CookieOptions{Secure: true},
	}
	h := NewHandler(env.otp, gate, env.sessions, nil, nil, Config{Cookies: env.cookies}, nil)
	env.router = gin.New()
	env.router.Use(session.Middleware(env.sessions, env.cookies, nil))
	h.Register(env.router)
	return env
}

func (e *testEnv) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == session.SecureCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSendOTP(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"ok", nil, http.StatusOK, `{"success":true}`},
		{"invalid email", service.ErrInvalidInput, http.StatusBadRequest, `{"error":"Invalid email address."}`},
		{"bot", service.ErrBotCheckFailed, http.StatusForbidden, ""},
		{"bot unavailable", fmt.Errorf("%w: dial", service.ErrBotCheckUnavailable), http.StatusForbidden, ""},
		{"delivery", fmt.Errorf("%w: ses", service.ErrDeliveryFailed), http.StatusInternalServerError, `{"error":"Failed to send OTP. Please try again."}`},
		{"timeout", fmt.Errorf("%w: send", service.ErrUpstreamTimeout), http.StatusGatewayTimeout, ""},
		{"internal", errors.New("db down"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, fakeGate{})
			env.otp.issueErr = tc.err
			w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"a@example.com","turnstileToken":"tok"}`)
			assert.Equal(t, tc.wantStatus, w.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, w.Body.String())
			}
			require.Len(t, env.otp.issued, 1)
			assert.Equal(t, "tok", env.otp.issued[0].BotToken)
		})
	}
}

func TestSendOTP_RateLimitedSetsRetryAfter(t *testing.T) {
	env := newTestEnv(t, fakeGate{})
	env.otp.issueErr = &service.RateLimitError{Rule: "otp_issue_email", RetryAfter: 15 * time.Minute}
	w := env.do(http.MethodPost, "/api/auth/send-otp", `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
}

func TestSendOTP_BadJSON(t *testing.T) {
	env := newTestEnv(t, fakeGate{})
	w := env.do(http.MethodPost, "/api/auth/send-otp", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.otp.issued)
}

func TestVerifyOTP_EstablishesSession(t *testing.T) {
	env := newTestEnv(t, fakeGate{})
	env.otp.principal = &identitydomain.Principal{UserID: "u1", Email: "a@example.com", Name: "Ada", Onboarded: true}

	w := env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"a@example.com","otp":"483920"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			Onboarded bool   `json:"onboarded"`
		} `json:"user"`
		Expires string `json:"expires"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.User.ID)
	assert.True(t, body.User.Onboarded)
	assert.NotEmpty(t, body.Expires)

	c := sessionCookie(t, w)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	w = env.do(http.MethodGet, "/api/auth/session", "", c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@example.com"`)
}

func TestVerifyOTP_Failures(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"generic", service.ErrInvalidOrExpiredCode, http.StatusUnauthorized},
		{"rate limited", &service.RateLimitError{Rule: "otp_verify_email", RetryAfter: time.Minute}, http.StatusTooManyRequests},
		{"unknown outcome", fmt.Errorf("%w: consume", service.ErrUpstreamTimeout), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, fakeGate{})
			env.otp.verifyErr = tc.err
			w := env.do(http.MethodPost, "/api/auth/verify-otp", `{"email":"a@example.com","otp":"000000"}`)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestVerifyTurnstile(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"ok", `{"token":"t"}`, nil, http.StatusOK, `{"success":true}`},
		{"missing", `{}`, nil, http.StatusBadRequest, `{"success":false,"error":"Missing token"}`},
		{"rejected", `{"token":"t"}`, service.ErrBotCheckFailed, http.StatusForbidden, `{"success":false,"error":"Turnstile verification failed"}`},
		{"unconfigured", `{"token":"t"}`, botcheck.ErrNotConfigured, http.StatusInternalServerError, `{"success":false,"error":"Server misconfiguration"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, fakeGate{verify: tc.err})
			w := env.do(http.MethodPost, "/api/verify-turnstile", tc.body)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.JSONEq(t, tc.wantBody, w.Body.String())
		})
	}
}

func TestSessionAndLogout(t *testing.T) {
	env := newTestEnv(t, fakeGate{})
	w := env.do(http.MethodGet, "/api/auth/session", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := env.sessions.Establish(context.Background(), security.SessionSubject{UserID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	c := &http.Cookie{Name: session.SecureCookieName, Value: tok.Value}

	w = env.do(http.MethodPost, "/api/auth/logout", "", c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	cleared := sessionCookie(t, w)
	assert.Equal(t, -1, cleared.MaxAge)

	w = env.do(http.MethodGet, "/api/auth/session", "", c)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked session must not authenticate")

	w = env.do(http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code, "logout is idempotent")
}

func TestGoogleRoutesAbsentWithoutProvider(t *testing.T) {
	env := newTestEnv(t, fakeGate{})
	w := env.do(http.MethodGet, "/api/auth/google/login", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	code, msg := statusFor("verify-otp", fmt.Errorf("%w: x", service.ErrUpstreamTimeout))
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Contains(t, msg, "request a new one")

	code, _ = statusFor("google", service.ErrEmailNotVerified)
	assert.Equal(t, http.StatusUnauthorized, code)
}

