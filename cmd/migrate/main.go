package main

// Apply the usage table migrations to DATABASE_URL:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"pdf-watermark-api/internal/config"
	"pdf-watermark-api/internal/repository"
	"pdf-watermark-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.NewConfig()
	appLogger := logger.NewLogger(cfg.GetLogLevel(), cfg.GetLogFormat())
	ctx := context.Background()

	sqlDB, err := repository.ConnectPostgres(ctx, cfg.GetDatabaseURL(), repository.DefaultMigratePoolOptions())
	if err != nil {
		appLogger.Error("Failed to connect database", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := repository.RunMigrations(ctx, sqlDB); err != nil {
		appLogger.Error("Failed to run migrations", err)
		os.Exit(1)
	}
	appLogger.Info("Migrations applied")
}
