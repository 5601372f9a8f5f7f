package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/botcheck"
	"github.com/learning-panda-ai/website/internal/ratelimit"
	telemetryotel "github.com/learning-panda-ai/website/internal/telemetry/otel"
)

// Gate runs the abuse checks that guard sign-in: human verification and rate limits.
type Gate struct {
	bot     botcheck.Verifier
	enforce bool
	limiter ratelimit.Limiter
	metrics *telemetryotel.AuthMetrics
	log     *zap.Logger
}

// NewGate returns a Gate. When enforce is false CheckHuman passes every request (development only);
// VerifyHuman always consults bot. A nil limiter disables rate limiting.
func NewGate(bot botcheck.Verifier, enforce bool, limiter ratelimit.Limiter, metrics *telemetryotel.AuthMetrics, log *zap.Logger) *Gate {
	if bot == nil {
		bot = botcheck.Disabled{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{bot: bot, enforce: enforce, limiter: limiter, metrics: metrics, log: log.Named("gate")}
}

// CheckHuman verifies token before a sign-in action when enforcement is on.
func (g *Gate) CheckHuman(ctx context.Context, token, clientIP string) error {
	if !g.enforce {
		return nil
	}
	return g.VerifyHuman(ctx, token, clientIP)
}

// VerifyHuman verifies token regardless of enforcement. An unset secret fails closed with a plain error.
func (g *Gate) VerifyHuman(ctx context.Context, token, clientIP string) error {
	ok, err := g.bot.Verify(ctx, token, clientIP)
	switch {
	case errors.Is(err, botcheck.ErrNotConfigured):
		g.log.Error("bot verification secret is not configured")
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: bot verification: %w", ErrUpstreamTimeout, err)
	case err != nil:
		g.log.Warn("bot verification unavailable", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrBotCheckUnavailable, err)
	case !ok:
		return ErrBotCheckFailed
	}
	return nil
}

// Allow counts one hit for key under rule. Limiter errors are returned as internal errors.
func (g *Gate) Allow(ctx context.Context, rule ratelimit.Rule, key string) error {
	if g.limiter == nil || !rule.Enabled || key == "" {
		return nil
	}
	ok, err := g.limiter.Allow(ctx, key, rule)
	if err != nil {
		return fmt.Errorf("rate limiter %s: %w", rule.Name, err)
	}
	if !ok {
		g.metrics.RateLimited(ctx, rule.Name)
		g.log.Warn("rate limit exceeded", zap.String("rule", rule.Name))
		return &RateLimitError{Rule: rule.Name, RetryAfter: rule.Window}
	}
	return nil
}

// Reset clears key's counter under rule, e.g. once a sign-in succeeds. Failures are only logged.
func (g *Gate) Reset(ctx context.Context, rule ratelimit.Rule, key string) {
	if g.limiter == nil || !rule.Enabled || key == "" {
		return
	}
	if err := g.limiter.Reset(ctx, key, rule); err != nil {
		g.log.Warn("rate limit reset failed", zap.String("rule", rule.Name), zap.Error(err))
	}
}
