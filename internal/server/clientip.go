package server

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

type clientIPKey struct{}

// WithClientIP returns ctx carrying ip.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPMiddleware stores gin's resolved client IP in the request context so
// services (audit, rate limits) can read it without a gin dependency.
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// ClientIP returns the caller's IP: the value stored by ClientIPMiddleware, else gRPC
// metadata (x-forwarded-for, x-real-ip), else the peer address, else "unknown".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			s, _, _ := strings.Cut(vals[0], ",")
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
