// Package telemetry ships auth events to Kafka or the OTel log pipeline.
package telemetry

import (
	"context"

	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

// EventEmitter emits auth events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuthEvent) error
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event *domain.AuthEvent) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event *domain.AuthEvent) error { return f(ctx, event) }
