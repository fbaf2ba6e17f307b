package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/models"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	PolicyFallback = "fallback"
	PolicyStrict   = "strict"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
		LogFile      string
	}

	Model struct {
		Path          string
		DataPath      string
		FailurePolicy string
		Schema        string
		SchemaFile    string
		RemoteTimeout time.Duration
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	Database struct {
		Path string
	}

	Probe struct {
		Schedule string
		Timeout  time.Duration
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := Default()

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "10s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.LogFile = getEnv("LOG_FILE", "")

	// Model configuration
	cfg.Model.Path = getEnv("MODEL_PATH", cfg.Model.Path)
	cfg.Model.DataPath = getEnv("DATA_PATH", cfg.Model.DataPath)
	cfg.Model.FailurePolicy = getEnv("MODEL_FAILURE_POLICY", cfg.Model.FailurePolicy)
	cfg.Model.Schema = getEnv("FEATURE_SCHEMA", cfg.Model.Schema)
	cfg.Model.SchemaFile = getEnv("FEATURE_SCHEMA_FILE", "")
	cfg.Model.RemoteTimeout = parseDuration(getEnv("REMOTE_PREDICTOR_TIMEOUT", "5s"))

	// Cache configuration
	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "1000"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Retry configuration
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "3"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	// Prediction history
	cfg.Database.Path = os.Getenv("DATABASE_PATH")

	// Predictor probe
	cfg.Probe.Schedule = getEnvAllowEmpty("PROBE_SCHEDULE", cfg.Probe.Schedule)
	cfg.Probe.Timeout = parseDuration(getEnv("PROBE_TIMEOUT", "5s"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 10 * time.Second
	cfg.Server.LogLevel = "info"
	cfg.Model.Path = "water_demand_model.json"
	cfg.Model.DataPath = "synthetic_water_data.csv"
	cfg.Model.FailurePolicy = PolicyFallback
	cfg.Model.Schema = "api"
	cfg.Model.RemoteTimeout = 5 * time.Second
	cfg.Cache.Duration = 10 * time.Minute
	cfg.Cache.MaxSize = 1000
	cfg.CircuitBreaker.Threshold = 3
	cfg.CircuitBreaker.Timeout = 30 * time.Second
	cfg.Retry.MaxRetries = 3
	cfg.Retry.Delay = time.Second
	cfg.Retry.Multiplier = 2
	cfg.Probe.Schedule = "@every 1m"
	cfg.Probe.Timeout = 5 * time.Second
	return cfg
}

func (c *Config) Validate() error {
	switch c.Model.FailurePolicy {
	case PolicyFallback, PolicyStrict:
	default:
		return fmt.Errorf("unknown MODEL_FAILURE_POLICY %q (want %q or %q)",
			c.Model.FailurePolicy, PolicyFallback, PolicyStrict)
	}
	if c.Model.DataPath == "" && c.Model.Path == "" {
		return fmt.Errorf("MODEL_PATH and DATA_PATH are both empty")
	}
	return nil
}

// FeatureSchema resolves the schema file if one is configured, otherwise the
// named built-in schema.
func (c *Config) FeatureSchema() (*models.FeatureSchema, error) {
	if c.Model.SchemaFile != "" {
		return models.LoadSchemaFile(c.Model.SchemaFile)
	}
	return models.BuiltinSchema(c.Model.Schema)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable switch a feature off.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
