package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/audit"
	auditrepo "github.com/learning-panda-ai/website/internal/audit/repository"
	"github.com/learning-panda-ai/website/internal/botcheck"
	challengerepo "github.com/learning-panda-ai/website/internal/challenge/repository"
	"github.com/learning-panda-ai/website/internal/challenge/sweeper"
	"github.com/learning-panda-ai/website/internal/config"
	"github.com/learning-panda-ai/website/internal/db"
	"github.com/learning-panda-ai/website/internal/devotp"
	devotphandler "github.com/learning-panda-ai/website/internal/devotp/handler"
	"github.com/learning-panda-ai/website/internal/health"
	healthhandler "github.com/learning-panda-ai/website/internal/health/handler"
	"github.com/learning-panda-ai/website/internal/identity/google"
	identityhandler "github.com/learning-panda-ai/website/internal/identity/handler"
	identityrepo "github.com/learning-panda-ai/website/internal/identity/repository"
	identityservice "github.com/learning-panda-ai/website/internal/identity/service"
	"github.com/learning-panda-ai/website/internal/mailer"
	"github.com/learning-panda-ai/website/internal/policy/engine"
	"github.com/learning-panda-ai/website/internal/ratelimit"
	"github.com/learning-panda-ai/website/internal/redis"
	"github.com/learning-panda-ai/website/internal/security"
	"github.com/learning-panda-ai/website/internal/server"
	"github.com/learning-panda-ai/website/internal/session"
	"github.com/learning-panda-ai/website/internal/telemetry"
	telemetryotel "github.com/learning-panda-ai/website/internal/telemetry/otel"
	"github.com/learning-panda-ai/website/internal/telemetry/producer"
	userhandler "github.com/learning-panda-ai/website/internal/user/handler"
	userrepo "github.com/learning-panda-ai/website/internal/user/repository"
	userservice "github.com/learning-panda-ai/website/internal/user/service"
)

// apiRule bounds overall API traffic per client IP, on top of the per-operation OTP limits.
var apiRule = ratelimit.Rule{Name: "api_ip", Limit: 300, Window: time.Minute}

// application is everything run needs, plus the cleanup for it.
type application struct {
	httpDeps  server.HTTPDeps
	checker   *health.Checker
	sweeper   *sweeper.Sweeper
	providers *telemetryotel.Providers
	closers   []func() error
	log       *zap.Logger
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
}

type stores struct {
	db         *sql.DB
	challenges challengerepo.Repository
	users      userrepo.Repository
	identities identityrepo.Repository
	audit      auditrepo.Repository
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *application, err error) {
	app := &application{log: log}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	app.providers = providers
	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var events telemetry.EventEmitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.AuthEventsTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, kp.Close)
		events = kp
		log.Info("auth events go to kafka", zap.String("topic", cfg.AuthEventsTopic))
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	checks := []health.Check{}
	if st.db != nil {
		app.closers = append(app.closers, st.db.Close)
		checks = append(checks, health.PingCheck("database", st.db))
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	var denylist session.Denylist = session.NewMemoryDenylist()
	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, rc.Close)
		checks = append(checks, health.PingCheck("redis", rc))
		limiter = ratelimit.NewRedisLimiter(rc)
		denylist = session.NewRedisDenylist(rc)
	} else {
		log.Warn("REDIS_ADDR not set; rate limits and session revocation are per-process")
	}

	tokens, err := tokenProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(tokens, denylist)
	cookies := session.CookieOptions{Secure: cfg.CookieSecure}

	access, err := engine.NewAccessEvaluator(ctx, log)
	if err != nil {
		return nil, err
	}
	checks = append(checks, health.PolicyCheck("policy", access))
	app.checker = health.NewChecker(2*time.Second, checks...)

	var auditLog audit.AuditLogger = audit.Nop{}
	var activity userservice.ActivityLister
	if st.audit != nil {
		auditLog = audit.NewLogger(st.audit, server.ClientIP, log)
		activity = st.audit
	}

	var devStore *devotp.MemoryStore
	var sender mailer.Sender
	if cfg.DevOTPEnabled {
		devStore = devotp.NewMemoryStore()
		sender = mailer.NewDevSender(devStore, cfg.OTPTTL(), log)
		log.Warn("DEV_OTP_ENABLED: sign-in codes are served at /dev/otp and not emailed")
	} else {
		ses, err := mailer.NewSESSender(mailer.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			From:            cfg.EmailFrom,
			CodeTTL:         cfg.OTPTTL(),
			Timeout:         cfg.EmailTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		sender = ses
	}

	if !cfg.BotCheckEnabled {
		log.Warn("BOTCHECK_ENABLED=false: sign-in requests skip human verification")
	}
	gate := identityservice.NewGate(
		botcheck.NewTurnstileClient(cfg.TurnstileSecretKey, cfg.TurnstileVerifyURL, cfg.UpstreamTimeout()),
		cfg.BotCheckEnabled, limiter, metrics, log,
	)
	opts := identityservice.Options{
		CodeTTL:         cfg.OTPTTL(),
		UpstreamTimeout: cfg.UpstreamTimeout(),
		Gate:            gate,
		Rules:           rules(cfg),
		Audit:           auditLog,
		Events:          events,
		Metrics:         metrics,
		Log:             log,
	}
	passwordless := identityservice.NewPasswordlessService(
		st.challenges, st.users, st.identities, security.NewHasher(cfg.OTPBcryptCost), sender, opts,
	)
	authHandler := identityhandler.NewHandler(passwordless, gate, sessions, auditLog, events,
		identityhandler.Config{Cookies: cookies, PostLoginRedirect: cfg.PostLoginRedirect}, log)
	if cfg.GoogleEnabled() {
		provider, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		authHandler.WithGoogle(provider, identityservice.NewGoogleService(st.users, st.identities, opts))
	}

	users := userservice.NewService(st.users, activity, auditLog, events, log)
	sessions.WithSubjectLoader(users)

	app.sweeper = sweeper.New(st.challenges, cfg.OTPSweepInterval(), 30*time.Second, log)

	rule := apiRule
	rule.Enabled = cfg.RateLimitEnabled
	app.httpDeps = server.HTTPDeps{
		Log:            log,
		ServiceName:    cfg.OTelServiceName,
		TrustedProxies: cfg.TrustedProxiesList(),
		Sessions:       sessions,
		Cookies:        cookies,
		Health:         healthhandler.NewHTTP(app.checker),
		Identity:       authHandler,
		Users:          userhandler.NewHandler(users, sessions, cookies, log),
		Limiter:        limiter,
		APIRule:        rule,
		Access:         access,
		WebDir:         cfg.WebDir,
	}
	if devStore != nil {
		app.httpDeps.DevOTP = devotphandler.NewHandler(devStore)
	}
	return app, nil
}

// openStores connects to Postgres, or falls back to in-memory repositories outside production.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			return stores{}, errors.New("DATABASE_URL is required when APP_ENV=production")
		}
		log.Warn("DATABASE_URL not set; using in-memory storage, data is lost on restart")
		return stores{
			challenges: challengerepo.NewMemoryRepository(),
			users:      userrepo.NewMemoryRepository(),
			identities: identityrepo.NewMemoryRepository(),
		}, nil
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("db: %w", err)
	}
	return stores{
		db:         conn,
		challenges: challengerepo.NewPostgresRepository(conn),
		users:      userrepo.NewPostgresRepository(conn),
		identities: identityrepo.NewPostgresRepository(conn),
		audit:      auditrepo.NewPostgresRepository(conn),
	}, nil
}

// tokenProvider loads the JWT key pair. Outside production a missing pair is replaced by an ephemeral one.
func tokenProvider(cfg *config.Config, log *zap.Logger) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("jwt keys: %w", err)
		}
		return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL()), nil
	}
	if cfg.IsProduction() {
		return nil, errors.New("JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when APP_ENV=production")
	}
	log.Warn("JWT keys not set; using an ephemeral key pair, sessions end on restart")
	priv, pub, err := security.NewEphemeralKeyPair()
	if err != nil {
		return nil, fmt.Errorf("jwt keys: %w", err)
	}
	return security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTL()), nil
}

func rules(cfg *config.Config) identityservice.Rules {
	return identityservice.Rules{
		IssueEmail: ratelimit.Rule{
			Name: "otp_issue_email", Limit: cfg.RateLimitIssueEmailLimit,
			Window: cfg.IssueEmailWindow(), Enabled: cfg.RateLimitEnabled,
		},
		IssueIP: ratelimit.Rule{
			Name: "otp_issue_ip", Limit: cfg.RateLimitIssueIPLimit,
			Window: cfg.IssueIPWindow(), Enabled: cfg.RateLimitEnabled,
		},
		VerifyEmail: ratelimit.Rule{
			Name: "otp_verify_email", Limit: cfg.RateLimitVerifyEmailLimit,
			Window: cfg.VerifyEmailWindow(), Enabled: cfg.RateLimitEnabled,
		},
	}
}
