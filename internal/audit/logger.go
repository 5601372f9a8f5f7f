// Package audit records security-relevant account events (sign-in, logout, profile changes).
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/audit/domain"
	auditrepo "github.com/learning-panda-ai/website/internal/audit/repository"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	log         *zap.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		log:         log.Named("audit"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("failed to log event",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}

// Nop discards every event.
type Nop struct{}

// LogEvent does nothing.
func (Nop) LogEvent(context.Context, string, string, string, string) {}
