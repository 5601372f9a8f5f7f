// Package service implements the account operations behind onboarding and the settings page.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/audit"
	auditdomain "github.com/learning-panda-ai/website/internal/audit/domain"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/telemetry"
	telemetrydomain "github.com/learning-panda-ai/website/internal/telemetry/domain"
	"github.com/learning-panda-ai/website/internal/user/domain"
	userrepo "github.com/learning-panda-ai/website/internal/user/repository"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultActivityLimit is how many audit entries Activity returns when no limit is given.
const DefaultActivityLimit = 20

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ActivityLister reads a user's audit trail.
type ActivityLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.AuditLog, error)
}

// Service reads and updates user profiles.
type Service struct {
	repo     userrepo.Repository
	activity ActivityLister
	audit    audit.AuditLogger
	events   telemetry.EventEmitter
	log      *zap.Logger
	now      func() time.Time
}

// NewService returns a Service. activity, auditLog and events may be nil.
func NewService(repo userrepo.Repository, activity ActivityLister, auditLog audit.AuditLogger, events telemetry.EventEmitter, log *zap.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		activity: activity,
		audit:    auditLog,
		events:   events,
		log:      log.Named("user"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the user or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// SessionSubject returns the session claims for the stored user, or nil if the user no longer exists.
func (s *Service) SessionSubject(ctx context.Context, id string) (*security.SessionSubject, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	sub := SubjectOf(u)
	return &sub, nil
}

// SubjectOf maps a user to the claims its session carries.
func SubjectOf(u *domain.User) security.SessionSubject {
	return security.SessionSubject{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Picture:   u.Image,
		Onboarded: u.Onboarded,
	}
}

// CompleteOnboarding stores the wizard answers and marks the user onboarded.
func (s *Service) CompleteOnboarding(ctx context.Context, id string, in domain.Onboarding) (*domain.User, error) {
	in.Normalize()
	if in.FirstName == "" {
		return nil, fmt.Errorf("%w: first name is required", ErrInvalidInput)
	}
	if in.ParentEmail != "" && !emailPattern.MatchString(in.ParentEmail) {
		return nil, fmt.Errorf("%w: parent email is malformed", ErrInvalidInput)
	}
	u, err := s.repo.CompleteOnboarding(ctx, id, in, s.now())
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	s.log.Info("onboarding completed", zap.String("user_id", id), zap.Int("courses", len(u.Courses)))
	s.audit.LogEvent(ctx, id, auditdomain.ActionOnboardingCompleted, auditdomain.ResourceUser, "")
	telemetry.EmitAsync(s.events, s.log, &telemetrydomain.AuthEvent{
		EventType: telemetrydomain.EventOnboardingCompleted,
		UserID:    id,
	})
	return u, nil
}

// UpdateProfile applies a settings-page edit. Blank fields are cleared.
func (s *Service) UpdateProfile(ctx context.Context, id string, p domain.Profile) (*domain.User, error) {
	p.Normalize()
	if p.ParentEmail != "" && !emailPattern.MatchString(p.ParentEmail) {
		return nil, fmt.Errorf("%w: parent email is malformed", ErrInvalidInput)
	}
	u, err := s.repo.UpdateProfile(ctx, id, p, s.now())
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	s.audit.LogEvent(ctx, id, auditdomain.ActionProfileUpdated, auditdomain.ResourceUser, "")
	return u, nil
}

// Activity returns the user's most recent audit entries, newest first.
func (s *Service) Activity(ctx context.Context, id string, limit int) ([]*auditdomain.AuditLog, error) {
	if s.activity == nil {
		return []*auditdomain.AuditLog{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = DefaultActivityLimit
	}
	out, err := s.activity.ListByUser(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*auditdomain.AuditLog{}
	}
	return out, nil
}
