package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learning-panda-ai/website/internal/user/domain"
)

// MemoryRepository is an in-memory Repository for tests and local runs without Postgres.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*domain.User)}
}

// Put stores a copy of u as-is. Tests only.
func (r *MemoryRepository) Put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = clone(u)
}

// Count returns the number of stored users.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (r *MemoryRepository) ResolveVerified(ctx context.Context, email string, now time.Time) (*domain.User, bool, error) {
	return r.ResolveOAuth(ctx, domain.OAuthProfile{Email: email, EmailVerified: true}, now)
}

func (r *MemoryRepository) ResolveOAuth(ctx context.Context, p domain.OAuthProfile, now time.Time) (*domain.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.byEmailLocked(p.Email)
	created := u == nil
	if created {
		u = &domain.User{ID: uuid.New().String(), Email: p.Email, Courses: []string{}, CreatedAt: now, UpdatedAt: now}
		r.users[u.ID] = u
	}
	if p.EmailVerified && u.EmailVerifiedAt == nil {
		t := now
		u.EmailVerifiedAt = &t
		u.UpdatedAt = now
	}
	if u.Name == "" && p.Name != "" {
		u.Name = p.Name
		u.UpdatedAt = now
	}
	if u.Image == "" && p.Picture != "" {
		u.Image = p.Picture
		u.UpdatedAt = now
	}
	return clone(u), created, nil
}

func (r *MemoryRepository) CompleteOnboarding(ctx context.Context, id string, in domain.Onboarding, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	u.FirstName, u.LastName = in.FirstName, in.LastName
	u.City, u.State = in.City, in.State
	u.ParentName, u.ParentMobile, u.ParentEmail = in.ParentName, in.ParentMobile, in.ParentEmail
	u.Grade, u.AITutor = in.Grade, in.AITutor
	u.Courses = append([]string{}, in.Courses...)
	u.Onboarded = true
	u.UpdatedAt = now
	return clone(u), nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, id string, p domain.Profile, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	u.FirstName, u.LastName = p.FirstName, p.LastName
	u.City, u.State, u.Grade = p.City, p.State, p.Grade
	u.ParentName, u.ParentMobile, u.ParentEmail = p.ParentName, p.ParentMobile, p.ParentEmail
	if name, ok := p.DisplayName(); ok {
		u.Name = name
	}
	u.UpdatedAt = now
	return clone(u), nil
}

func (r *MemoryRepository) byEmailLocked(email string) *domain.User {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func clone(u *domain.User) *domain.User {
	c := *u
	c.Courses = append([]string{}, u.Courses...)
	if u.EmailVerifiedAt != nil {
		t := *u.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	return &c
}
