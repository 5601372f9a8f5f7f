package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/learning-panda-ai/website/internal/security"
)

func newTestManager(t *testing.T, d Denylist) *Manager {
	t.Helper()
	tp, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	return NewManager(tp, d)
}

func TestManager_EstablishAndAuthenticate(t *testing.T) {
	m := newTestManager(t, NewMemoryDenylist())
	ctx := context.Background()

	tok, err := m.Establish(ctx, security.SessionSubject{UserID: "u1", Email: "a@b.co", Onboarded: true})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if tok.Value == "" || tok.Claims == nil {
		t.Fatal("Establish returned empty token")
	}
	if d := time.Until(tok.ExpiresAt); d < 23*time.Hour || d > 24*time.Hour {
		t.Errorf("ExpiresAt in %v, want ~24h", d)
	}

	claims, err := m.Authenticate(ctx, tok.Value)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.UserID() != "u1" || claims.Email != "a@b.co" || !claims.Onboarded {
		t.Errorf("claims = %+v", claims)
	}
}

func TestManager_EstablishRequiresUserID(t *testing.T) {
	m := newTestManager(t, nil)
	if _, err := m.Establish(context.Background(), security.SessionSubject{Email: "a@b.co"}); err == nil {
		t.Fatal("Establish without user id should fail")
	}
}

func TestManager_AuthenticateRejectsGarbage(t *testing.T) {
	m := newTestManager(t, nil)
	for _, raw := range []string{"", "not-a-jwt"} {
		if _, err := m.Authenticate(context.Background(), raw); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Authenticate(%q) err = %v, want ErrUnauthenticated", raw, err)
		}
	}
}

func TestManager_RevokeDenylistsSession(t *testing.T) {
	m := newTestManager(t, NewMemoryDenylist())
	ctx := context.Background()
	tok, err := m.Establish(ctx, security.SessionSubject{UserID: "u1", Email: "a@b.co"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if err := m.Revoke(ctx, tok.Claims); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := m.Authenticate(ctx, tok.Value); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Authenticate after revoke err = %v, want ErrUnauthenticated", err)
	}

	other, err := m.Establish(ctx, security.SessionSubject{UserID: "u1", Email: "a@b.co"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	if _, err := m.Authenticate(ctx, other.Value); err != nil {
		t.Errorf("other session should stay valid: %v", err)
	}
}

type failingDenylist struct{ NoopDenylist }

func (failingDenylist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestManager_DenylistErrorFailsClosed(t *testing.T) {
	m := newTestManager(t, failingDenylist{})
	ctx := context.Background()
	tok, err := m.Establish(ctx, security.SessionSubject{UserID: "u1"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}
	_, err = m.Authenticate(ctx, tok.Value)
	if err == nil || errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want denylist error", err)
	}
}

func TestMemoryDenylist_Expiry(t *testing.T) {
	d := NewMemoryDenylist()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.nowF = func() time.Time { return now }
	ctx := context.Background()

	_ = d.Revoke(ctx, "j1", now.Add(time.Minute))
	_ = d.Revoke(ctx, "j2", now.Add(-time.Minute))
	if ok, _ := d.IsRevoked(ctx, "j1"); !ok {
		t.Error("j1 should be revoked")
	}
	if ok, _ := d.IsRevoked(ctx, "j2"); ok {
		t.Error("already-expired j2 should not be stored")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := d.IsRevoked(ctx, "j1"); ok {
		t.Error("j1 should lapse after its expiry")
	}
}

type stubSubjects struct {
	sub *security.SessionSubject
	err error
}

func (s stubSubjects) SessionSubject(context.Context, string) (*security.SessionSubject, error) {
	return s.sub, s.err
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	tok, err := m.Establish(ctx, security.SessionSubject{UserID: "u1", Email: "a@x.io"})
	if err != nil {
		t.Fatalf("Establish: %v", err)
	}

	if got, err := m.Refresh(ctx, tok.Claims); got != nil || err != nil {
		t.Fatalf("no loader: got %v, %v; want nil, nil", got, err)
	}

	m.WithSubjectLoader(stubSubjects{sub: &security.SessionSubject{UserID: "u1", Email: "a@x.io"}})
	if got, err := m.Refresh(ctx, tok.Claims); got != nil || err != nil {
		t.Fatalf("unchanged: got %v, %v; want nil, nil", got, err)
	}

	m.WithSubjectLoader(stubSubjects{sub: &security.SessionSubject{UserID: "u1", Email: "a@x.io", Name: "Ada Lovelace", Onboarded: true}})
	got, err := m.Refresh(ctx, tok.Claims)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got == nil || !got.Claims.Onboarded || got.Claims.Name != "Ada Lovelace" {
		t.Fatalf("stale claims not refreshed: %+v", got)
	}
	if got.Claims.ID == tok.Claims.ID {
		t.Error("refreshed session reuses the old jti")
	}

	m.WithSubjectLoader(stubSubjects{})
	if _, err := m.Refresh(ctx, tok.Claims); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("deleted account: err = %v, want ErrUnauthenticated", err)
	}

	m.WithSubjectLoader(stubSubjects{err: errors.New("db down")})
	if _, err := m.Refresh(ctx, tok.Claims); err == nil || errors.Is(err, ErrUnauthenticated) {
		t.Errorf("loader failure: err = %v, want wrapped store error", err)
	}
}
