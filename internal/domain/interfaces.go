package domain

import (
	"context"
	"time"
)

// Watermarker stamps every page of a PDF document
type Watermarker interface {
	Apply(ctx context.Context, pdf []byte, stamp Stamp) (*WatermarkResult, error)
}

// UsageRepository defines persistence operations for monthly usage counters
type UsageRepository interface {
	// Increment adds files and pages to the company's counter for the period,
	// creating the row when it does not exist yet.
	Increment(ctx context.Context, company string, period UsagePeriod, files, pages int) (*UsageRecord, error)
	Get(ctx context.Context, company string, period UsagePeriod) (*UsageRecord, error)
	ListByCompany(ctx context.Context, company string) ([]*UsageRecord, error)
}

// UsageService defines the use-case operations for usage accounting
type UsageService interface {
	RecordUsage(ctx context.Context, company string, pages int, at time.Time) (*UsageRecord, error)
	GetMonthlyUsage(ctx context.Context, company string, year, month int) (*UsageRecord, error)
	ListCompanyUsage(ctx context.Context, company string) ([]*UsageRecord, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetLogFormat() string
	GetAPIKey() string
	GetUsageStore() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetDatabaseURL() string
	GetUsageTable() string
	GetWatermarkLabel() string
	GetCORSAllowedOrigins() []string
	GetShutdownTimeout() time.Duration
	GetUsageRecordTimeout() time.Duration
	Validate() error
}
