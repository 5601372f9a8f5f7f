// seed inserts development accounts for local testing. Idempotent: existing users are left as they are.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/config"
	"github.com/learning-panda-ai/website/internal/db"
	identitydomain "github.com/learning-panda-ai/website/internal/identity/domain"
	identityrepo "github.com/learning-panda-ai/website/internal/identity/repository"
	"github.com/learning-panda-ai/website/internal/logger"
	"github.com/learning-panda-ai/website/internal/user/domain"
	userrepo "github.com/learning-panda-ai/website/internal/user/repository"
)

type seedUser struct {
	email      string
	onboarding *domain.Onboarding
}

var seedUsers = []seedUser{
	{
		email: "student@example.com",
		onboarding: &domain.Onboarding{
			FirstName:   "Sam",
			LastName:    "Student",
			City:        "Austin",
			State:       "TX",
			ParentName:  "Pat Student",
			ParentEmail: "parent@example.com",
			Grade:       "8",
			Courses:     []string{"math", "science"},
			AITutor:     "panda",
		},
	},
	// Left un-onboarded to exercise the wizard.
	{email: "newcomer@example.com"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env).Named("seed")
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		log.Fatal("refusing to seed when APP_ENV=production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	now := time.Now().UTC()

	for _, su := range seedUsers {
		u, created, err := users.ResolveVerified(ctx, su.email, now)
		if err != nil {
			log.Fatal("resolve user", zap.String("email", su.email), zap.Error(err))
		}
		if err := identities.Link(ctx, &identitydomain.Identity{
			ID:         uuid.New().String(),
			UserID:     u.ID,
			Provider:   identitydomain.IdentityProviderEmail,
			ProviderID: su.email,
			CreatedAt:  now,
		}); err != nil {
			log.Fatal("link identity", zap.String("email", su.email), zap.Error(err))
		}
		if !created {
			log.Info("user exists, skipped", zap.String("email", su.email))
			continue
		}
		if su.onboarding != nil {
			if _, err := users.CompleteOnboarding(ctx, u.ID, *su.onboarding, now); err != nil {
				log.Fatal("onboard user", zap.String("email", su.email), zap.Error(err))
			}
		}
		log.Info("user created", zap.String("email", su.email), zap.Bool("onboarded", su.onboarding != nil))
	}
	fmt.Println("Seed completed. Sign in with any seeded email; with DEV_OTP_ENABLED=true read the code from /dev/otp.")
}
