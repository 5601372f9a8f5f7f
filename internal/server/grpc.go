package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthCheckMethod is logged at debug level only; probes call it constantly.
const HealthCheckMethod = "/grpc.health.v1.Health/Check"

// NewGRPCServer returns the internal gRPC server with the standard health service registered.
func NewGRPCServer(hs *health.Server, log *zap.Logger) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingUnary(log.Named("grpc"), map[string]bool{HealthCheckMethod: true})),
	)
	RegisterServices(s, hs)
	return s
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, hs *health.Server) {
	healthpb.RegisterHealthServer(s, hs)
}

// LoggingUnary logs each RPC with its status code, duration and client IP.
// Methods in quiet are logged at debug level.
func LoggingUnary(log *zap.Logger, quiet map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", ClientIP(ctx)),
		}
		switch {
		case quiet[info.FullMethod]:
			log.Debug("rpc", fields...)
		case err != nil:
			log.Warn("rpc", append(fields, zap.Error(err))...)
		default:
			log.Info("rpc", fields...)
		}
		return resp, err
	}
}
