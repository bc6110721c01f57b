package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Dataset DatasetConfig
	Model   ModelConfig
	S3      S3Config
	Redis   RedisConfig
	Charts  ChartsConfig
	Breaker BreakerConfig
	Tracing TracingConfig
	Sentry  SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port             string
	Environment      string
	ServiceName      string
	Version          string
	ReadTimeout      int
	WriteTimeout     int
	RequestTimeoutMS int
	CORSOrigins      string // Comma-separated list of allowed origins
}

// DatasetConfig locates the historical ride-count table.
// Path may be a local file or an s3://bucket/key URI. When SQLDriver is set
// the table is read from a database instead.
type DatasetConfig struct {
	Path      string
	SQLDriver string
	SQLDSN    string
	SQLQuery  string
}

// ModelConfig locates the serialized tree ensemble
type ModelConfig struct {
	Path           string
	Format         string // auto, text, json or xgboost
	ImportanceType string // gain or split
}

// S3Config holds object storage credentials used for s3:// paths
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// ChartsConfig controls rendered chart caching
type ChartsConfig struct {
	CacheTTLMinutes int
	Width           int
	Height          int
}

// BreakerConfig tunes the circuit breaker guarding the shared chart cache
type BreakerConfig struct {
	IntervalSeconds  int
	TimeoutSeconds   int
	FailureThreshold int
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// SentryConfig holds error tracking settings
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			ServiceName:      serviceName,
			Version:          getEnv("SERVICE_VERSION", "1.0.0"),
			ReadTimeout:      getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout:     getEnvAsInt("WRITE_TIMEOUT", 10),
			RequestTimeoutMS: getEnvAsInt("REQUEST_TIMEOUT_MS", 5000),
			CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:8080"),
		},
		Dataset: DatasetConfig{
			Path:      getEnv("DATASET_PATH", "ola.csv"),
			SQLDriver: getEnv("DATASET_SQL_DRIVER", ""),
			SQLDSN:    getEnv("DATASET_SQL_DSN", ""),
			SQLQuery:  getEnv("DATASET_SQL_QUERY", "SELECT datetime, count, temperature, rain, holiday FROM rides ORDER BY datetime"),
		},
		Model: ModelConfig{
			Path:           getEnv("MODEL_PATH", "ola_model.txt"),
			Format:         strings.ToLower(getEnv("MODEL_FORMAT", "auto")),
			ImportanceType: strings.ToLower(getEnv("MODEL_IMPORTANCE_TYPE", "gain")),
		},
		S3: S3Config{
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Charts: ChartsConfig{
			CacheTTLMinutes: getEnvAsInt("CHART_CACHE_TTL_MINUTES", 60),
			Width:           getEnvAsInt("CHART_WIDTH_PX", 900),
			Height:          getEnvAsInt("CHART_HEIGHT_PX", 450),
		},
		Breaker: BreakerConfig{
			IntervalSeconds:  getEnvAsInt("BREAKER_INTERVAL_SECONDS", 60),
			TimeoutSeconds:   getEnvAsInt("BREAKER_TIMEOUT_SECONDS", 30),
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Model.Format {
	case "auto", "text", "json", "xgboost":
	default:
		return fmt.Errorf("invalid MODEL_FORMAT %q: want auto, text, json or xgboost", c.Model.Format)
	}
	switch c.Model.ImportanceType {
	case "gain", "split":
	default:
		return fmt.Errorf("invalid MODEL_IMPORTANCE_TYPE %q: want gain or split", c.Model.ImportanceType)
	}
	switch c.Dataset.SQLDriver {
	case "":
		if c.Dataset.Path == "" {
			return fmt.Errorf("DATASET_PATH is required")
		}
	case "pgx", "sqlite":
		if c.Dataset.SQLDSN == "" {
			return fmt.Errorf("DATASET_SQL_DSN is required when DATASET_SQL_DRIVER=%s", c.Dataset.SQLDriver)
		}
	default:
		return fmt.Errorf("invalid DATASET_SQL_DRIVER %q: want pgx or sqlite", c.Dataset.SQLDriver)
	}
	if c.Model.Path == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// CacheTTL returns the chart cache expiry as a duration
func (c *ChartsConfig) CacheTTL() time.Duration {
	if c.CacheTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// RequestTimeout returns the API request timeout
func (c *ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// AllowedOrigins splits CORSOrigins into a list
func (c *ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
