package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/learning-panda-ai/website/internal/health"
)

type stubChecker struct{ report healthcheck.Report }

func (s stubChecker) Run(context.Context) healthcheck.Report { return s.report }

func serve(t *testing.T, h *HTTP, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLive(t *testing.T) {
	w := serve(t, NewHTTP(stubChecker{}), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestReady(t *testing.T) {
	ok := stubChecker{report: healthcheck.Report{Healthy: true, Results: map[string]string{"database": "ok"}}}
	if w := serve(t, NewHTTP(ok), "/readyz"); w.Code != http.StatusOK {
		t.Errorf("healthy: status = %d, want 200", w.Code)
	}

	down := stubChecker{report: healthcheck.Report{Results: map[string]string{"database": "database: refused"}}}
	w := serve(t, NewHTTP(down), "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: status = %d, want 503", w.Code)
	}

	if w := serve(t, NewHTTP(nil), "/readyz"); w.Code != http.StatusOK {
		t.Errorf("nil checker: status = %d, want 200", w.Code)
	}
}

func servingStatus(t *testing.T, srv *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	return resp.GetStatus()
}

func TestReporter_Update(t *testing.T) {
	srv := health.NewServer()
	checker := &stubChecker{}
	rep := NewReporter(srv, checker, time.Minute, nil)
	if got := servingStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v, want NOT_SERVING", got)
	}

	checker.report = healthcheck.Report{Healthy: true}
	if got := rep.Update(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Update = %v, want SERVING", got)
	}
	if got := servingStatus(t, srv); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}

	checker.report = healthcheck.Report{Healthy: false}
	rep.Update(context.Background())
	if got := servingStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestReporter_RunStopsOnCancel(t *testing.T) {
	srv := health.NewServer()
	rep := NewReporter(srv, stubChecker{report: healthcheck.Report{Healthy: true}}, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rep.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := servingStatus(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after shutdown = %v, want NOT_SERVING", got)
	}
}
