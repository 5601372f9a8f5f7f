package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/learning-panda-ai/website/internal/challenge/domain"
	"github.com/learning-panda-ai/website/internal/db"
)

const (
	deleteByEmailSQL        = `DELETE FROM otp_challenges WHERE email = $1`
	insertSQL               = `INSERT INTO otp_challenges (id, email, code_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
	deleteExpiredByEmailSQL = `DELETE FROM otp_challenges WHERE email = $1 AND expires_at <= $2`
	selectLiveForUpdateSQL  = `SELECT id, email, code_hash, expires_at, created_at FROM otp_challenges WHERE email = $1 AND expires_at > $2 ORDER BY created_at DESC FOR UPDATE`
	deleteByIDSQL           = `DELETE FROM otp_challenges WHERE id = $1`
	deleteExpiredSQL        = `DELETE FROM otp_challenges WHERE expires_at <= $1`
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Replace deletes prior challenges for the email and inserts c in one transaction.
func (r *PostgresRepository) Replace(ctx context.Context, c *domain.Challenge) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteByEmailSQL, c.Email); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertSQL, c.ID, c.Email, c.CodeHash, c.ExpiresAt, c.CreatedAt)
		return err
	})
}

// Consume locks the live challenge rows for email, and deletes the first one match accepts.
// The delete must affect exactly one row; a concurrent consumer that got there first leaves nothing to take.
func (r *PostgresRepository) Consume(ctx context.Context, email string, now time.Time, match MatchFunc, then ConsumedFunc) (*domain.Challenge, error) {
	var consumed *domain.Challenge
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteExpiredByEmailSQL, email, now); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, selectLiveForUpdateSQL, email, now)
		if err != nil {
			return err
		}
		var live []*domain.Challenge
		for rows.Next() {
			c := &domain.Challenge{}
			if err := rows.Scan(&c.ID, &c.Email, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			live = append(live, c)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, c := range live {
			if !match(c) {
				continue
			}
			res, err := tx.ExecContext(ctx, deleteByIDSQL, c.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n != 1 {
				return nil
			}
			if then != nil {
				if err := then(db.ContextWithTx(ctx, tx), c); err != nil {
					return err
				}
			}
			consumed = c
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// DeleteExpired removes all challenges that expired at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteExpiredSQL, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
