// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the public HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the internal gRPC health server (e.g. :9090). Empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// WebDir, when set, is served as the built frontend with page access rules applied.
	WebDir string `mapstructure:"WEB_DIR"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs (Cloudflare ranges, the load
	// balancer subnet) allowed to set CF-Connecting-IP and X-Forwarded-For. Empty trusts no proxy.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RedisAddr enables the Redis rate limiter and session denylist. Empty uses in-process fallbacks.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string `mapstructure:"JWT_ISSUER"`
	JWTAudience  string `mapstructure:"JWT_AUDIENCE"`
	// SessionTTLRaw is the session lifetime (e.g. "720h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// CookieSecure marks the session cookie Secure and switches to the __Host- prefix.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`

	OTPTTLRaw           string `mapstructure:"OTP_TTL"`
	OTPBcryptCost       int    `mapstructure:"OTP_BCRYPT_COST"`
	OTPSweepIntervalRaw string `mapstructure:"OTP_SWEEP_INTERVAL"`
	// DevOTPEnabled stores issued codes for GET /dev/otp instead of emailing them. Rejected when APP_ENV=production.
	DevOTPEnabled bool `mapstructure:"DEV_OTP_ENABLED"`

	RateLimitEnabled           bool   `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitIssueEmailLimit   int    `mapstructure:"RATE_LIMIT_ISSUE_EMAIL_LIMIT"`
	RateLimitIssueEmailWindow  string `mapstructure:"RATE_LIMIT_ISSUE_EMAIL_WINDOW"`
	RateLimitIssueIPLimit      int    `mapstructure:"RATE_LIMIT_ISSUE_IP_LIMIT"`
	RateLimitIssueIPWindow     string `mapstructure:"RATE_LIMIT_ISSUE_IP_WINDOW"`
	RateLimitVerifyEmailLimit  int    `mapstructure:"RATE_LIMIT_VERIFY_EMAIL_LIMIT"`
	RateLimitVerifyEmailWindow string `mapstructure:"RATE_LIMIT_VERIFY_EMAIL_WINDOW"`

	TurnstileSecretKey string `mapstructure:"TURNSTILE_SECRET_KEY"`
	TurnstileVerifyURL string `mapstructure:"TURNSTILE_VERIFY_URL"`
	// BotCheckEnabled gates OTP issuance and Google login on a Turnstile token.
	BotCheckEnabled bool `mapstructure:"BOTCHECK_ENABLED"`

	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
	EmailFrom          string `mapstructure:"EMAIL_FROM"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`
	// PostLoginRedirect is where the Google callback sends the browser after sign-in.
	PostLoginRedirect string `mapstructure:"POST_LOGIN_REDIRECT"`

	// UpstreamTimeoutRaw bounds database, Redis and Turnstile calls made while serving a request.
	UpstreamTimeoutRaw string `mapstructure:"UPSTREAM_TIMEOUT"`
	// EmailTimeoutRaw bounds a single email send.
	EmailTimeoutRaw string `mapstructure:"EMAIL_TIMEOUT"`

	// KafkaBrokers is a comma-separated broker list; when set, auth events are written to Kafka.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`
	// Worker-only.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	LokiURL      string `mapstructure:"LOKI_URL"`

	OTLPEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so every key needs a default.
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WEB_DIR", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "learning-panda")
	v.SetDefault("JWT_AUDIENCE", "learning-panda-web")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_BCRYPT_COST", 10)
	v.SetDefault("OTP_SWEEP_INTERVAL", "5m")
	v.SetDefault("DEV_OTP_ENABLED", false)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_ISSUE_EMAIL_LIMIT", 5)
	v.SetDefault("RATE_LIMIT_ISSUE_EMAIL_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_ISSUE_IP_LIMIT", 20)
	v.SetDefault("RATE_LIMIT_ISSUE_IP_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_VERIFY_EMAIL_LIMIT", 10)
	v.SetDefault("RATE_LIMIT_VERIFY_EMAIL_WINDOW", "15m")
	v.SetDefault("TURNSTILE_SECRET_KEY", "")
	v.SetDefault("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("BOTCHECK_ENABLED", true)
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "")
	v.SetDefault("POST_LOGIN_REDIRECT", "/login")
	v.SetDefault("UPSTREAM_TIMEOUT", "5s")
	v.SetDefault("EMAIL_TIMEOUT", "10s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "learning-panda-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "learning-panda-auth-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "learning-panda-api")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.DevOTPEnabled && cfg.Env == "production" {
		return nil, errors.New("config: DEV_OTP_ENABLED must not be true when APP_ENV=production")
	}

	if cfg.OTPBcryptCost == 0 {
		cfg.OTPBcryptCost = 10
	}
	if cfg.OTPBcryptCost < 4 || cfg.OTPBcryptCost > 31 {
		return nil, errors.New("config: OTP_BCRYPT_COST must be between 4 and 31")
	}

	for key, raw := range map[string]string{
		"SESSION_TTL":                    cfg.SessionTTLRaw,
		"OTP_TTL":                        cfg.OTPTTLRaw,
		"OTP_SWEEP_INTERVAL":             cfg.OTPSweepIntervalRaw,
		"UPSTREAM_TIMEOUT":               cfg.UpstreamTimeoutRaw,
		"EMAIL_TIMEOUT":                  cfg.EmailTimeoutRaw,
		"RATE_LIMIT_ISSUE_EMAIL_WINDOW":  cfg.RateLimitIssueEmailWindow,
		"RATE_LIMIT_ISSUE_IP_WINDOW":     cfg.RateLimitIssueIPWindow,
		"RATE_LIMIT_VERIFY_EMAIL_WINDOW": cfg.RateLimitVerifyEmailWindow,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return nil, fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
		}
	}

	for _, p := range cfg.TrustedProxiesList() {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
		}
	}

	return &cfg, nil
}

func durationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SessionTTL returns the session lifetime. Returns 720h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return durationOr(c.SessionTTLRaw, 720*time.Hour) }

// OTPTTL returns the challenge lifetime. Returns 10m if unset or invalid.
func (c *Config) OTPTTL() time.Duration { return durationOr(c.OTPTTLRaw, 10*time.Minute) }

// OTPSweepInterval returns how often expired challenges are purged. Returns 5m if unset or invalid.
func (c *Config) OTPSweepInterval() time.Duration {
	return durationOr(c.OTPSweepIntervalRaw, 5*time.Minute)
}

// UpstreamTimeout returns the per-call bound for database, Redis and Turnstile. Returns 5s if unset or invalid.
func (c *Config) UpstreamTimeout() time.Duration { return durationOr(c.UpstreamTimeoutRaw, 5*time.Second) }

// EmailTimeout returns the per-send bound for the email provider. Returns 10s if unset or invalid.
func (c *Config) EmailTimeout() time.Duration { return durationOr(c.EmailTimeoutRaw, 10*time.Second) }

// IssueEmailWindow returns the per-email issuance window. Returns 15m if unset or invalid.
func (c *Config) IssueEmailWindow() time.Duration {
	return durationOr(c.RateLimitIssueEmailWindow, 15*time.Minute)
}

// IssueIPWindow returns the per-IP issuance window. Returns 15m if unset or invalid.
func (c *Config) IssueIPWindow() time.Duration {
	return durationOr(c.RateLimitIssueIPWindow, 15*time.Minute)
}

// VerifyEmailWindow returns the per-email verification window. Returns 15m if unset or invalid.
func (c *Config) VerifyEmailWindow() time.Duration {
	return durationOr(c.RateLimitVerifyEmailWindow, 15*time.Minute)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c != nil && c.Env == "production" }

// GoogleEnabled reports whether all Google OAuth settings are present.
func (c *Config) GoogleEnabled() bool {
	return c != nil && c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means events go to the OTel log pipeline instead.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxiesList returns the proxies whose forwarding headers are believed.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
