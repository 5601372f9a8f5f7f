// Package domain holds the sign-in challenge entity.
package domain

import "time"

// Challenge is a pending one-time code for an email address (otp_challenges table).
// Only the bcrypt hash of the code is stored.
type Challenge struct {
	ID        string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is no longer usable at now.
// A challenge expiring exactly at now is expired.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
