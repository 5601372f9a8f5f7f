// server runs the Learning Panda HTTP API and the internal gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/learning-panda-ai/website/internal/config"
	healthhandler "github.com/learning-panda-ai/website/internal/health/handler"
	"github.com/learning-panda-ai/website/internal/logger"
	"github.com/learning-panda-ai/website/internal/server"
	"github.com/learning-panda-ai/website/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	router, err := server.NewRouter(app.httpDeps)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	hs := health.NewServer()
	grpcSrv := server.NewGRPCServer(hs, log)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	bg, cancelBG := context.WithCancel(ctx)
	defer cancelBG()
	go healthhandler.NewReporter(hs, app.checker, 10*time.Second, log).Run(bg)
	go app.sweeper.Run(bg)

	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("server failed, shutting down", zap.Error(serveErr))
	}
	cancelBG()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	// Give async event emits time to finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := app.providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return serveErr
}
