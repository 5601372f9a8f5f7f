// migrate applies the embedded SQL migrations: go run ./cmd/migrate [-direction up|down].
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/config"
	"github.com/learning-panda-ai/website/internal/db/migrate"
	"github.com/learning-panda-ai/website/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema already at target version")
			return
		}
		log.Fatal("migrate failed", zap.String("direction", *direction), zap.Error(err))
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		log.Warn("read schema version", zap.Error(err))
		return
	}
	log.Info("migrations applied", zap.String("direction", *direction), zap.Uint("version", version), zap.Bool("dirty", dirty))
}
