package config

import (
	"errors"
	"fmt"
	"time"

	pkgconfig "github.com/vetclinic/sitemedia/pkg/config"
	"github.com/vetclinic/sitemedia/pkg/database"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSupabase = "supabase"
	BackendS3       = "s3"
	BackendRedis    = "redis"
)

// Config holds all configuration for the media service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"MEDIA_HTTP_PORT" envDefault:"8011"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`
	MaxUploadBytes     int64    `env:"MEDIA_MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Base URL for objects served by this service (memory and redis backends).
	BaseURL string `env:"MEDIA_BASE_URL" envDefault:""`

	// Object storage
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`

	SupabaseURL    string `env:"SUPABASE_URL"`
	SupabaseKey    string `env:"SUPABASE_KEY"`
	SupabaseBucket string `env:"SUPABASE_BUCKET" envDefault:"images"`

	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3PublicBaseURL   string `env:"S3_PUBLIC_BASE_URL"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"clinic"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"clinic_secret"`
	PostgresDB   string `env:"MEDIA_DB_NAME" envDefault:"clinic_media"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Image pipeline defaults applied when a request leaves an option unset.
	ImageMaxWidth   int     `env:"IMAGE_MAX_WIDTH" envDefault:"1200"`
	ImageQuality    float64 `env:"IMAGE_QUALITY" envDefault:"0.8"`
	ImageOutputType string  `env:"IMAGE_OUTPUT_TYPE" envDefault:"webp"`

	UploadCacheControl time.Duration `env:"UPLOAD_CACHE_CONTROL" envDefault:"3600s"`

	// Per-client limits on the upload routes.
	UploadRateRPS   float64 `env:"UPLOAD_RATE_RPS" envDefault:"2"`
	UploadRateBurst int     `env:"UPLOAD_RATE_BURST" envDefault:"5"`

	// Readiness gate
	StartupAttempts int           `env:"STARTUP_ATTEMPTS" envDefault:"3"`
	StartupBackoff  time.Duration `env:"STARTUP_BACKOFF" envDefault:"1s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load media config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings required by the selected storage backend.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory:
	case BackendSupabase:
		if c.SupabaseURL == "" {
			errs = append(errs, errors.New("SUPABASE_URL is required for the supabase backend"))
		}
		if c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_KEY is required for the supabase backend"))
		}
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 backend"))
		}
	case BackendRedis:
		if c.RedisHost == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.JWTSecret == "" && c.Environment != "development" {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.PostgresHost == "" {
		errs = append(errs, errors.New("POSTGRES_HOST is required"))
	}
	if c.UploadCacheControl <= 0 {
		errs = append(errs, errors.New("UPLOAD_CACHE_CONTROL must be positive"))
	}
	if c.StartupAttempts < 1 {
		errs = append(errs, errors.New("STARTUP_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}

// PostgresConfig returns pool settings for the upload ledger database.
func (c *Config) PostgresConfig() database.PostgresConfig {
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = c.PostgresHost
	pgCfg.Port = c.PostgresPort
	pgCfg.User = c.PostgresUser
	pgCfg.Password = c.PostgresPass
	pgCfg.DBName = c.PostgresDB
	pgCfg.SSLMode = c.PostgresSSL
	return pgCfg
}

// RedisConfig returns client settings for the redis object backend.
func (c *Config) RedisConfig() database.RedisConfig {
	rCfg := database.DefaultRedisConfig()
	rCfg.Host = c.RedisHost
	rCfg.Port = c.RedisPort
	rCfg.Password = c.RedisPassword
	rCfg.DB = c.RedisDB
	return rCfg
}

// PublicBaseURL returns the externally reachable base URL of this service.
func (c *Config) PublicBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://localhost:%d", c.HTTPPort)
}
