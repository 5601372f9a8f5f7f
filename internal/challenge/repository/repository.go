package repository

import (
	"context"
	"time"

	"github.com/learning-panda-ai/website/internal/challenge/domain"
)

// DefaultChallengeTTL is how long an issued code stays valid.
const DefaultChallengeTTL = 10 * time.Minute

// MatchFunc decides whether a live challenge accepts the submitted code.
type MatchFunc func(c *domain.Challenge) bool

// ConsumedFunc runs after a challenge is deleted and before the delete commits.
// Returning an error undoes the delete, so the code stays valid. For the Postgres
// store ctx carries the transaction (see db.Conn).
type ConsumedFunc func(ctx context.Context, c *domain.Challenge) error

// Repository defines persistence for sign-in challenges.
//
// At most one live challenge exists per email: Replace removes every earlier
// challenge for the address in the same transaction as the insert.
type Repository interface {
	// Replace deletes all challenges for c.Email and inserts c, atomically.
	Replace(ctx context.Context, c *domain.Challenge) error
	// Consume finds the live challenge for email, asks match whether it accepts the
	// code, and deletes it in the same transaction if so. then, when non-nil, runs
	// inside that transaction; its error rolls the delete back and is returned.
	// Expired rows for the email are removed along the way. Returns nil, nil when
	// nothing was consumed.
	Consume(ctx context.Context, email string, now time.Time, match MatchFunc, then ConsumedFunc) (*domain.Challenge, error)
	// DeleteExpired removes every challenge whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
