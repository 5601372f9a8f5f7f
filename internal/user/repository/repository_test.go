package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learning-panda-ai/website/internal/db"
	"github.com/learning-panda-ai/website/internal/db/migrate"
	"github.com/learning-panda-ai/website/internal/user/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// userFor returns the existing user for email; ResolveVerified never creates a second row.
func userFor(t *testing.T, repo Repository, email string) *domain.User {
	t.Helper()
	u, created, err := repo.ResolveVerified(context.Background(), email, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, created, "user for %s should already exist", email)
	return u
}

// exerciseRepository runs the shared contract against any Repository implementation.
func exerciseRepository(t *testing.T, repo Repository, email string) {
	ctx := context.Background()

	t.Run("resolve creates then reuses", func(t *testing.T) {
		u, created, err := repo.ResolveVerified(ctx, email, t0)
		require.NoError(t, err)
		require.True(t, created)
		require.NotNil(t, u.EmailVerifiedAt)
		assert.True(t, u.EmailVerifiedAt.Equal(t0))
		assert.False(t, u.Onboarded)
		assert.Empty(t, u.Courses)

		again, created, err := repo.ResolveVerified(ctx, email, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, u.ID, again.ID)
		assert.True(t, again.EmailVerifiedAt.Equal(t0), "first verification time is kept")
	})

	t.Run("get by id", func(t *testing.T) {
		existing := userFor(t, repo, email)
		byID, err := repo.GetByID(ctx, existing.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, email, byID.Email)

		missing, err := repo.GetByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("onboarding", func(t *testing.T) {
		u := userFor(t, repo, email)
		got, err := repo.CompleteOnboarding(ctx, u.ID, domain.Onboarding{
			FirstName: "Asha", LastName: "Rao", Grade: "6",
			Courses: []string{"math-6", "science-6"}, AITutor: "panda",
		}, t0.Add(2*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Onboarded)
		assert.Equal(t, []string{"math-6", "science-6"}, got.Courses)
		assert.Equal(t, "panda", got.AITutor)

		none, err := repo.CompleteOnboarding(ctx, uuid.NewString(), domain.Onboarding{}, t0)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("profile update clears blanks and syncs name", func(t *testing.T) {
		u := userFor(t, repo, email)
		got, err := repo.UpdateProfile(ctx, u.ID, domain.Profile{FirstName: "Asha", City: "Pune"}, t0.Add(3*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Asha", got.Name)
		assert.Equal(t, "", got.LastName)
		assert.Equal(t, "Pune", got.City)
		assert.Equal(t, "", got.Grade)

		got, err = repo.UpdateProfile(ctx, u.ID, domain.Profile{LastName: "Rao"}, t0.Add(4*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "Asha", got.Name, "name unchanged without a first name")
	})

	t.Run("oauth fills empty name and image", func(t *testing.T) {
		other := "g-" + email
		u, created, err := repo.ResolveOAuth(ctx, domain.OAuthProfile{Email: other, EmailVerified: true, Name: "G User", Picture: "https://img/1"}, t0)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "G User", u.Name)
		assert.Equal(t, "https://img/1", u.Image)

		u2, created, err := repo.ResolveOAuth(ctx, domain.OAuthProfile{Email: other, EmailVerified: true, Name: "Renamed"}, t0.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "G User", u2.Name, "existing name is kept")
	})
}

func TestMemoryRepository_Contract(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository(), "kid@example.com")
}

func TestMemoryRepository_ResolveVerified_EmailCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, _, err := repo.ResolveVerified(ctx, "kid@example.com", t0)
	require.NoError(t, err)
	b, created, err := repo.ResolveVerified(ctx, "KID@example.com", t0)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryRepository_ResolveVerified_SetsMissingVerification(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(&domain.User{ID: "u-1", Email: "kid@example.com"})

	u, created, err := repo.ResolveVerified(context.Background(), "kid@example.com", t0)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u-1", u.ID)
	require.NotNil(t, u.EmailVerifiedAt)
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryRepository_ResolveVerified_Concurrent(t *testing.T) {
	repo := NewMemoryRepository()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = repo.ResolveVerified(context.Background(), "kid@example.com", t0)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, repo.Count())
}

func TestPostgresRepository_Contract(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Skipf("migrate failed (expected in test environment): %v", err)
	}
	conn, err := db.Open(context.Background(), dsn)
	if err != nil {
		t.Skipf("Database connection failed: %v", err)
	}
	defer conn.Close()

	email := "it-" + uuid.NewString() + "@example.com"
	t.Cleanup(func() {
		_, _ = conn.Exec(`DELETE FROM users WHERE lower(email) IN (lower($1), lower($2))`, email, "g-"+email)
	})
	exerciseRepository(t, NewPostgresRepository(conn), email)
}
