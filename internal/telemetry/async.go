package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; then it returns immediately without starting a goroutine.
// The goroutine uses context.Background() so request cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, log *zap.Logger, event *domain.AuthEvent) {
	if emitter == nil || event == nil {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = domain.SourceAPI
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn("telemetry: async emit failed", zap.String("event_type", event.EventType), zap.Error(err))
		}
	}()
}
