// Package server assembles the HTTP router and the internal gRPC server.
package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/ratelimit"
	"github.com/learning-panda-ai/website/internal/session"
)

// RemoteIPHeaders are consulted, in order, for the client IP behind Cloudflare or a load balancer.
var RemoteIPHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Routes is implemented by every HTTP handler the router mounts.
type Routes interface {
	Register(r gin.IRoutes)
}

// RouterRoutes is implemented by handlers that need to create their own groups.
type RouterRoutes interface {
	Register(r gin.IRouter)
}

// HTTPDeps holds what NewRouter mounts. Nil handlers are skipped.
type HTTPDeps struct {
	Log         *zap.Logger
	ServiceName string
	// TrustedProxies lists the peers (IPs or CIDRs) allowed to set RemoteIPHeaders.
	// Empty trusts none, so the client IP is always the TCP peer.
	TrustedProxies []string

	Sessions *session.Manager
	Cookies  session.CookieOptions

	Health   Routes
	Identity Routes
	Users    RouterRoutes
	DevOTP   Routes

	// Limiter and APIRule bound per-IP traffic on the API and dev routes.
	Limiter ratelimit.Limiter
	APIRule ratelimit.Rule

	Access AccessDecider
	// WebDir, when set, is served for unmatched GET routes with the access policy applied.
	WebDir string
}

// NewRouter builds the gin engine.
func NewRouter(d HTTPDeps) (*gin.Engine, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.RemoteIPHeaders = RemoteIPHeaders
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}
	serviceName := d.ServiceName
	if serviceName == "" {
		serviceName = "learning-panda"
	}
	r.Use(
		Recovery(log),
		otelgin.Middleware(serviceName),
		ClientIPMiddleware(),
		RequestLogger(log.Named("http"), "/healthz", "/readyz"),
	)

	if d.Health != nil {
		d.Health.Register(r)
	}

	app := r.Group("/")
	if d.Sessions != nil {
		app.Use(session.Middleware(d.Sessions, d.Cookies, log))
	}
	if d.Limiter != nil {
		app.Use(ratelimit.Middleware(d.Limiter, d.APIRule, ratelimit.ByClientIP, log))
	}
	if d.Identity != nil {
		d.Identity.Register(app)
	}
	if d.Users != nil {
		d.Users.Register(app)
	}
	if d.DevOTP != nil {
		d.DevOTP.Register(app)
	}
	if d.Access != nil {
		app.GET("/api/access", AccessHandler(d.Access))
		if d.WebDir != "" {
			pages := PageHandler(d.Access, d.WebDir)
			if d.Sessions != nil {
				r.NoRoute(session.Middleware(d.Sessions, d.Cookies, log), pages)
			} else {
				r.NoRoute(pages)
			}
		}
	}
	return r, nil
}
