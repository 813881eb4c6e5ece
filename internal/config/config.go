package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pdf-watermark-api/internal/domain"
	"pdf-watermark-api/internal/repository"

	"github.com/spf13/viper"
)

// Usage store backends
const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

const defaultMaxFileSize int64 = 50 * 1024 * 1024

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort         string
	MaxFileSize        int64
	LogLevel           string
	LogFormat          string
	APIKey             string
	UsageStore         string
	SupabaseURL        string
	SupabaseKey        string
	DatabaseURL        string
	UsageTable         string
	WatermarkLabel     string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	UsageRecordTimeout time.Duration
}

// NewConfig creates a new configuration instance from the environment and an
// optional watermark.{yaml,toml,json} file in the working directory.
func NewConfig() domain.Config {
	v := viper.New()
	v.SetConfigName("watermark")
	v.AddConfigPath(".")
	// A missing file is fine; env vars and defaults cover everything.
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("max_file_size", defaultMaxFileSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("usage_store", StoreSupabase)
	v.SetDefault("usage_table", repository.MigratedUsageTable)
	v.SetDefault("watermark_label", domain.DefaultWatermarkLabel)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("usage_record_timeout", 10*time.Second)

	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:         firstNonEmpty(v.GetString("port"), v.GetString("server_port")),
		MaxFileSize:        positiveInt64(v, "max_file_size", defaultMaxFileSize),
		LogLevel:           v.GetString("log_level"),
		LogFormat:          v.GetString("log_format"),
		APIKey:             v.GetString("api_key"),
		UsageStore:         strings.ToLower(strings.TrimSpace(v.GetString("usage_store"))),
		SupabaseURL:        v.GetString("supabase_url"),
		SupabaseKey:        firstNonEmpty(v.GetString("supabase_service_role_key"), v.GetString("supabase_key"), v.GetString("supabase_anon_key")),
		DatabaseURL:        v.GetString("database_url"),
		UsageTable:         v.GetString("usage_table"),
		WatermarkLabel:     v.GetString("watermark_label"),
		CORSAllowedOrigins: splitList(v.GetString("cors_allowed_origins")),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
		UsageRecordTimeout: v.GetDuration("usage_record_timeout"),
	}
}

// Validate reports configuration that would make the service unusable or open
func (c *AppConfig) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API_KEY must be set"))
	}
	switch c.UsageStore {
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY must be set for the supabase usage store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set for the postgres usage store"))
		}
		if c.UsageTable != "" && c.UsageTable != repository.MigratedUsageTable {
			errs = append(errs, fmt.Errorf("USAGE_TABLE must be %q for the postgres usage store, its migrations create no other table", repository.MigratedUsageTable))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown USAGE_STORE %q", c.UsageStore))
	}
	if c.UsageTable == "" {
		errs = append(errs, errors.New("USAGE_TABLE must not be empty"))
	}
	return errors.Join(errs...)
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetLogFormat returns the log encoder, json or console
func (c *AppConfig) GetLogFormat() string {
	return c.LogFormat
}

// GetAPIKey returns the bearer key clients must present
func (c *AppConfig) GetAPIKey() string {
	return c.APIKey
}

// GetUsageStore returns the usage backend name
func (c *AppConfig) GetUsageStore() string {
	return c.UsageStore
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetDatabaseURL returns the Postgres connection string
func (c *AppConfig) GetDatabaseURL() string {
	return c.DatabaseURL
}

func (c *AppConfig) GetUsageTable() string {
	return c.UsageTable
}

func (c *AppConfig) GetWatermarkLabel() string {
	return c.WatermarkLabel
}

func (c *AppConfig) GetCORSAllowedOrigins() []string {
	return c.CORSAllowedOrigins
}

func (c *AppConfig) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout
}

func (c *AppConfig) GetUsageRecordTimeout() time.Duration {
	return c.UsageRecordTimeout
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// positiveInt64 falls back when the value is unparsable or not positive
func positiveInt64(v *viper.Viper, key string, fallback int64) int64 {
	n := v.GetInt64(key)
	if n <= 0 {
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
