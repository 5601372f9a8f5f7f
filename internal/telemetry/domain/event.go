package domain

import "time"

// Event types for the auth flows.
const (
	EventOTPRequested        = "otp_requested"
	EventOTPDeliveryFailed   = "otp_delivery_failed"
	EventLoginSuccess        = "login_success"
	EventLoginFailure        = "login_failure"
	EventLogout              = "logout"
	EventOnboardingCompleted = "onboarding_completed"
)

// Sign-in methods.
const (
	MethodEmail  = "email"
	MethodGoogle = "google"
)

// SourceAPI marks events produced by the HTTP API.
const SourceAPI = "api"

// AuthEvent is one auth-related event. Email is always masked; codes and tokens never appear.
type AuthEvent struct {
	EventType string    `json:"eventType"`
	Source    string    `json:"source"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Method    string    `json:"method,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
