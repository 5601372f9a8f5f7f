package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Reporter keeps the standard grpc.health.v1 status in step with the readiness checks.
type Reporter struct {
	server   *health.Server
	checker  ReadinessChecker
	interval time.Duration
	log      *zap.Logger
}

// NewReporter returns a Reporter for srv. The overall status ("") starts NOT_SERVING until the first check passes.
func NewReporter(srv *health.Server, checker ReadinessChecker, interval time.Duration, log *zap.Logger) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Reporter{server: srv, checker: checker, interval: interval, log: log.Named("health")}
}

// Update runs the checks once and publishes the result.
func (r *Reporter) Update(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if r.checker != nil {
		if rep := r.checker.Run(ctx); !rep.Healthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			r.log.Warn("readiness check failed", zap.Any("checks", rep.Results))
		}
	}
	r.server.SetServingStatus("", status)
	return status
}

// Run updates the status every interval until ctx is done, then marks the server NOT_SERVING.
func (r *Reporter) Run(ctx context.Context) {
	r.Update(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return
		case <-ticker.C:
			r.Update(ctx)
		}
	}
}
