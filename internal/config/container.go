package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pdf-watermark-api/internal/domain"
	"pdf-watermark-api/internal/infra/supabase"
	"pdf-watermark-api/internal/metrics"
	"pdf-watermark-api/internal/repository"
	"pdf-watermark-api/internal/service"
	"pdf-watermark-api/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config          domain.Config
	Logger          domain.Logger
	Metrics         *metrics.Metrics
	SupabaseClient  domain.SupabaseClient
	DB              *sql.DB
	UsageRepository domain.UsageRepository
	UsageService    domain.UsageService
	Watermarker     domain.Watermarker
}

// NewContainer creates a new dependency injection container. The usage
// store is chosen by USAGE_STORE; the postgres store is migrated on startup.
func NewContainer(ctx context.Context) (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel(), config.GetLogFormat())

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{
		Config:  config,
		Logger:  appLogger,
		Metrics: metrics.New(""),
	}

	if err := c.initUsageRepository(ctx); err != nil {
		return nil, err
	}

	watermarker, err := service.NewWatermarkService(domain.DefaultWatermarkStyle(), appLogger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Watermarker = watermarker
	c.UsageService = service.NewUsageService(c.UsageRepository, appLogger)

	appLogger.Info("Container initialized",
		"usage_store", config.GetUsageStore(),
		"usage_table", config.GetUsageTable(),
		"max_file_size", config.GetMaxFileSize(),
	)
	return c, nil
}

func (c *Container) initUsageRepository(ctx context.Context) error {
	table := c.Config.GetUsageTable()

	switch c.Config.GetUsageStore() {
	case StoreSupabase:
		client := supabase.NewSupabaseClient(c.Config, c.Logger)
		if err := client.Initialize(); err != nil {
			return fmt.Errorf("initialize supabase: %w", err)
		}
		c.SupabaseClient = client
		c.UsageRepository = repository.NewSupabaseUsageRepository(client, table, c.Logger)

	case StorePostgres:
		db, err := repository.ConnectPostgres(ctx, c.Config.GetDatabaseURL(), repository.DefaultServerPoolOptions())
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := repository.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		c.DB = db
		c.UsageRepository = repository.NewPostgresUsageRepository(db, table, c.Logger)

	case StoreMemory:
		c.Logger.Warn("Using in-memory usage store; counters are lost on restart")
		c.UsageRepository = repository.NewMemoryUsageRepository()

	default:
		return fmt.Errorf("unknown usage store %q", c.Config.GetUsageStore())
	}
	return nil
}

// Close releases the database pool and flushes the logger.
func (c *Container) Close() error {
	var errs []error
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if s, ok := c.Logger.(interface{ Sync() error }); ok {
		// Sync on stdout returns EINVAL on some platforms.
		_ = s.Sync()
	}
	return errors.Join(errs...)
}
