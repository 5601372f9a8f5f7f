package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the sign-in flows; the HTTP handler maps them to status codes.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrBotCheckFailed       = errors.New("bot verification failed")
	ErrBotCheckUnavailable  = errors.New("bot verification unavailable")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrDeliveryFailed       = errors.New("failed to send code")
	ErrRateLimited          = errors.New("too many requests")
	ErrUpstreamTimeout      = errors.New("upstream timeout")
	ErrEmailNotVerified     = errors.New("email not verified by identity provider")
)

// RateLimitError reports which rule rejected a request. It matches ErrRateLimited.
type RateLimitError struct {
	Rule       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrRateLimited, e.Rule)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// RetryAfterSeconds is the Retry-After header value, at least 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	s := int(e.RetryAfter / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// classify wraps a datastore or upstream error, turning deadline hits into ErrUpstreamTimeout.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrUpstreamTimeout, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
