package domain

import "time"

// Actions recorded by the auth and account flows.
const (
	ActionOTPRequested        = "otp_requested"
	ActionOTPDeliveryFailed   = "otp_delivery_failed"
	ActionLoginSuccess        = "login_success"
	ActionLoginFailure        = "login_failure"
	ActionLogout              = "logout"
	ActionOnboardingCompleted = "onboarding_completed"
	ActionProfileUpdated      = "profile_updated"
)

// Resources the actions apply to.
const (
	ResourceAuthentication = "authentication"
	ResourceSession        = "session"
	ResourceUser           = "user"
)

// AuditLog represents an audit event. UserID is empty when the actor is not known (e.g. failed sign-in).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
