package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/learning-panda-ai/website/internal/telemetry"
	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

const instrumentationName = "learningpanda.auth"

// recordEmitter is the part of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger wraps any record emitter.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuthEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. The body is the event JSON; identifying fields are attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(otellog.SeverityInfo)
	if event.EventType == domain.EventLoginFailure || event.EventType == domain.EventOTPDeliveryFailed {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	if body, err := json.Marshal(event); err == nil {
		rec.SetBody(otellog.BytesValue(body))
	}
	for _, kv := range []struct{ k, v string }{
		{"event_type", event.EventType},
		{"source", event.Source},
		{"user_id", event.UserID},
		{"method", event.Method},
		{"reason", event.Reason},
	} {
		if kv.v != "" {
			rec.AddAttributes(otellog.String(kv.k, kv.v))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
