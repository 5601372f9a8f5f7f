// Package sweeper periodically purges expired sign-in challenges.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredDeleter is the slice of the challenge repository the sweeper needs.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired challenges on a fixed interval.
type Sweeper struct {
	repo     ExpiredDeleter
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// New returns a Sweeper. timeout bounds each delete; zero means the interval.
func New(repo ExpiredDeleter, interval, timeout time.Duration, log *zap.Logger) *Sweeper {
	if timeout <= 0 {
		timeout = interval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.Named("challenge_sweeper"),
	}
}

// WithClock replaces the time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// SweepOnce deletes everything expired as of now and returns the count.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.DeleteExpired(ctx, s.now())
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		n, err := s.SweepOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.log.Warn("sweep failed", zap.Error(err))
		case n > 0:
			s.log.Info("expired challenges removed", zap.Int64("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
