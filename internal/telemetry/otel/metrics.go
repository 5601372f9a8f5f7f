package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts sign-in code outcomes. A nil *AuthMetrics is a valid no-op.
type AuthMetrics struct {
	issued      metric.Int64Counter
	verified    metric.Int64Counter
	failed      metric.Int64Counter
	rateLimited metric.Int64Counter
}

// NewAuthMetrics registers the auth counters on mp.
func NewAuthMetrics(mp metric.MeterProvider) (*AuthMetrics, error) {
	meter := mp.Meter(instrumentationName)
	var (
		m   AuthMetrics
		err error
	)
	if m.issued, err = meter.Int64Counter("auth.otp.issued", metric.WithDescription("Sign-in codes issued and handed to delivery")); err != nil {
		return nil, err
	}
	if m.verified, err = meter.Int64Counter("auth.otp.verified", metric.WithDescription("Successful sign-ins")); err != nil {
		return nil, err
	}
	if m.failed, err = meter.Int64Counter("auth.otp.failed", metric.WithDescription("Failed issue or verify attempts")); err != nil {
		return nil, err
	}
	if m.rateLimited, err = meter.Int64Counter("auth.ratelimit.rejected", metric.WithDescription("Requests rejected by a rate limit rule")); err != nil {
		return nil, err
	}
	return &m, nil
}

// OTPIssued records an issued code.
func (m *AuthMetrics) OTPIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1)
}

// SignedIn records a successful sign-in by method ("email", "google").
func (m *AuthMetrics) SignedIn(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// Failed records a failed operation ("issue", "verify", "google") with a short reason.
func (m *AuthMetrics) Failed(ctx context.Context, op, reason string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op), attribute.String("reason", reason)))
}

// RateLimited records a rejection under rule.
func (m *AuthMetrics) RateLimited(ctx context.Context, rule string) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}
