package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	identityrepo "github.com/learning-panda-ai/website/internal/identity/repository"
	userdomain "github.com/learning-panda-ai/website/internal/user/domain"
	userrepo "github.com/learning-panda-ai/website/internal/user/repository"
)

func newGoogleService(t *testing.T) (*GoogleService, *userrepo.MemoryRepository, *identityrepo.MemoryRepository, *recordingAudit) {
	t.Helper()
	users := userrepo.NewMemoryRepository()
	identities := identityrepo.NewMemoryRepository()
	rec := &recordingAudit{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewGoogleService(users, identities, Options{Now: func() time.Time { return now }, Audit: rec})
	return svc, users, identities, rec
}

var googleClaims = GoogleClaims{
	Subject:       "1098765",
	Email:         "Student@Example.com",
	EmailVerified: true,
	Name:          "Sam Student",
	Picture:       "https://lh3.googleusercontent.com/a/sam",
}

func TestGoogleSignIn_NewUser(t *testing.T) {
	svc, users, identities, rec := newGoogleService(t)

	p, err := svc.SignIn(context.Background(), googleClaims, "198.51.100.2")
	require.NoError(t, err)
	assert.True(t, p.Created)
	assert.Equal(t, "student@example.com", p.Email)
	assert.Equal(t, "Sam Student", p.Name)
	assert.Equal(t, googleClaims.Picture, p.Image)
	assert.NotNil(t, p.EmailVerifiedAt)
	assert.Equal(t, 1, users.Count())

	link, err := identities.GetByProviderID(context.Background(), identitydomain.IdentityProviderGoogle, googleClaims.Subject)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, p.UserID, link.UserID)
	assert.True(t, rec.has("login_success"))
}

func TestGoogleSignIn_ReturningUserBySubject(t *testing.T) {
	svc, users, identities, _ := newGoogleService(t)
	first, err := svc.SignIn(context.Background(), googleClaims, "")
	require.NoError(t, err)

	changed := googleClaims
	changed.Email = "renamed@example.com"
	again, err := svc.SignIn(context.Background(), changed, "")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, again.UserID, "subject link wins over email")
	assert.False(t, again.Created)
	assert.Equal(t, 1, users.Count())
	assert.Equal(t, 1, identities.Len())
}

func TestGoogleSignIn_LinksExistingEmailUser(t *testing.T) {
	svc, users, identities, _ := newGoogleService(t)
	users.Put(&userdomain.User{ID: "u1", Email: "student@example.com"})

	p, err := svc.SignIn(context.Background(), googleClaims, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.False(t, p.Created)
	assert.Equal(t, "Sam Student", p.Name, "empty name is filled from the provider")
	assert.NotNil(t, p.EmailVerifiedAt)
	assert.Equal(t, 1, identities.Len())
}

func TestGoogleSignIn_Rejections(t *testing.T) {
	unverified := googleClaims
	unverified.EmailVerified = false
	noSubject := googleClaims
	noSubject.Subject = ""
	badEmail := googleClaims
	badEmail.Email = "not-an-email"

	cases := []struct {
		name   string
		claims GoogleClaims
		want   error
	}{
		{"unverified email", unverified, ErrEmailNotVerified},
		{"missing subject", noSubject, ErrInvalidInput},
		{"bad email", badEmail, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, users, identities, rec := newGoogleService(t)
			_, err := svc.SignIn(context.Background(), tc.claims, "")
			assert.True(t, errors.Is(err, tc.want), "err = %v, want %v", err, tc.want)
			assert.Equal(t, 0, users.Count())
			assert.Equal(t, 0, identities.Len())
			assert.True(t, rec.has("login_failure"))
		})
	}
}
