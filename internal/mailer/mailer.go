// Package mailer renders and delivers sign-in code emails.
package mailer

import "context"

// Sender delivers a sign-in code to an email address. Implementations must not log the code.
type Sender interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, code string) error

// SendOTP calls f.
func (f SenderFunc) SendOTP(ctx context.Context, to, code string) error { return f(ctx, to, code) }
