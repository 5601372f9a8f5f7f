package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/learning-panda-ai/website/internal/db"
	"github.com/learning-panda-ai/website/internal/user/domain"
)

const userColumns = `id, email, email_verified_at, name, image, first_name, last_name, city, state, grade,
parent_name, parent_mobile, parent_email, courses, ai_tutor, onboarded, created_at, updated_at`

const (
	getByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	resolveVerifiedSQL = `INSERT INTO users (id, email, email_verified_at, created_at, updated_at)
VALUES ($1, $2, $3, $3, $3)
ON CONFLICT ((lower(email))) DO UPDATE
SET email_verified_at = COALESCE(users.email_verified_at, EXCLUDED.email_verified_at),
    updated_at = CASE WHEN users.email_verified_at IS NULL THEN EXCLUDED.updated_at ELSE users.updated_at END
RETURNING ` + userColumns + `, (xmax = 0)`

	resolveOAuthSQL = `INSERT INTO users (id, email, email_verified_at, name, image, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $6)
ON CONFLICT ((lower(email))) DO UPDATE
SET email_verified_at = COALESCE(users.email_verified_at, EXCLUDED.email_verified_at),
    name = COALESCE(users.name, EXCLUDED.name),
    image = COALESCE(users.image, EXCLUDED.image),
    updated_at = EXCLUDED.updated_at
RETURNING ` + userColumns + `, (xmax = 0)`

	completeOnboardingSQL = `UPDATE users
SET first_name = NULLIF($2, ''), last_name = NULLIF($3, ''), city = NULLIF($4, ''), state = NULLIF($5, ''),
    parent_name = NULLIF($6, ''), parent_mobile = NULLIF($7, ''), parent_email = NULLIF($8, ''),
    grade = NULLIF($9, ''), courses = $10, ai_tutor = NULLIF($11, ''), onboarded = TRUE, updated_at = $12
WHERE id = $1
RETURNING ` + userColumns

	updateProfileSQL = `UPDATE users
SET first_name = NULLIF($2, ''), last_name = NULLIF($3, ''), city = NULLIF($4, ''), state = NULLIF($5, ''),
    grade = NULLIF($6, ''), parent_name = NULLIF($7, ''), parent_mobile = NULLIF($8, ''), parent_email = NULLIF($9, ''),
    name = COALESCE($10, name), updated_at = $11
WHERE id = $1
RETURNING ` + userColumns
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return oneOrNil(db.Conn(ctx, r.db).QueryRowContext(ctx, getByIDSQL, id))
}

// ResolveVerified upserts on lower(email) in a single statement, so concurrent first sign-ins create one row.
func (r *PostgresRepository) ResolveVerified(ctx context.Context, email string, now time.Time) (*domain.User, bool, error) {
	return scanUserInserted(db.Conn(ctx, r.db).QueryRowContext(ctx, resolveVerifiedSQL, uuid.New().String(), email, now))
}

// ResolveOAuth upserts the provider profile. email_verified_at is only set when the provider asserts it.
func (r *PostgresRepository) ResolveOAuth(ctx context.Context, p domain.OAuthProfile, now time.Time) (*domain.User, bool, error) {
	verified := sql.NullTime{Time: now, Valid: p.EmailVerified}
	return scanUserInserted(db.Conn(ctx, r.db).QueryRowContext(ctx, resolveOAuthSQL,
		uuid.New().String(), p.Email, verified, p.Name, p.Picture, now))
}

// CompleteOnboarding writes the onboarding fields and sets onboarded = true.
func (r *PostgresRepository) CompleteOnboarding(ctx context.Context, id string, in domain.Onboarding, now time.Time) (*domain.User, error) {
	courses := in.Courses
	if courses == nil {
		courses = []string{}
	}
	raw, err := json.Marshal(courses)
	if err != nil {
		return nil, err
	}
	return oneOrNil(db.Conn(ctx, r.db).QueryRowContext(ctx, completeOnboardingSQL, id,
		in.FirstName, in.LastName, in.City, in.State,
		in.ParentName, in.ParentMobile, in.ParentEmail,
		in.Grade, string(raw), in.AITutor, now))
}

// UpdateProfile writes the settings fields and keeps the display name in sync.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p domain.Profile, now time.Time) (*domain.User, error) {
	var name sql.NullString
	if n, ok := p.DisplayName(); ok {
		name = sql.NullString{String: n, Valid: true}
	}
	return oneOrNil(db.Conn(ctx, r.db).QueryRowContext(ctx, updateProfileSQL, id,
		p.FirstName, p.LastName, p.City, p.State, p.Grade,
		p.ParentName, p.ParentMobile, p.ParentEmail, name, now))
}

func oneOrNil(row *sql.Row) (*domain.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u, _, err := scan(row, false)
	return u, err
}

func scanUserInserted(row rowScanner) (*domain.User, bool, error) {
	return scan(row, true)
}

func scan(row rowScanner, withInserted bool) (*domain.User, bool, error) {
	var (
		u            domain.User
		verifiedAt   sql.NullTime
		name, image  sql.NullString
		first, last  sql.NullString
		city, state  sql.NullString
		grade, tutor sql.NullString
		pName, pMob  sql.NullString
		pEmail       sql.NullString
		courses      []byte
		inserted     bool
	)
	dest := []any{
		&u.ID, &u.Email, &verifiedAt, &name, &image, &first, &last, &city, &state, &grade,
		&pName, &pMob, &pEmail, &courses, &tutor, &u.Onboarded, &u.CreatedAt, &u.UpdatedAt,
	}
	if withInserted {
		dest = append(dest, &inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, false, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.EmailVerifiedAt = &t
	}
	u.Name, u.Image = name.String, image.String
	u.FirstName, u.LastName = first.String, last.String
	u.City, u.State, u.Grade = city.String, state.String, grade.String
	u.ParentName, u.ParentMobile, u.ParentEmail = pName.String, pMob.String, pEmail.String
	u.AITutor = tutor.String
	u.Courses = []string{}
	if len(courses) > 0 {
		if err := json.Unmarshal(courses, &u.Courses); err != nil {
			return nil, false, err
		}
	}
	return &u, inserted, nil
}
