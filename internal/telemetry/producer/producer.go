// Package producer defines the interface for publishing auth events to a broker.
package producer

import (
	"context"

	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

// Producer emits auth events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.AuthEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
