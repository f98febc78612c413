package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mansoorceksport/coachmatch/internal/matching"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OTEL     OTELConfig     `mapstructure:"otel"`
	Log      LogConfig      `mapstructure:"log"`
	Matching MatchingConfig `mapstructure:"matching"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string `mapstructure:"port"`
	BodyLimitKB int    `mapstructure:"body_limit_kb"`
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	RosterCacheTTL time.Duration `mapstructure:"roster_cache_ttl"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// JWTConfig holds the shared secret of the platform auth service
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// OTELConfig holds OpenTelemetry export configuration (Grafana Cloud OTLP gateway)
type OTELConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	InstanceID     string `mapstructure:"instance_id"`
	Token          string `mapstructure:"token"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
}

// LogConfig selects the zap level and encoding
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// MatchingConfig tunes the auto-assignment engine
type MatchingConfig struct {
	AutoAssignment matching.AutoAssignmentConfig `mapstructure:"auto_assignment"`
	Utilization    matching.UtilizationConfig    `mapstructure:"utilization"`
}

// legacyEnv maps config keys to the environment variable names used by existing deployments
var legacyEnv = map[string]string{
	"server.port":          "PORT",
	"mongodb.uri":          "MONGODB_URI",
	"mongodb.database":     "MONGODB_DATABASE",
	"redis.addr":           "REDIS_ADDR",
	"redis.password":       "REDIS_PASSWORD",
	"jwt.secret":           "JWT_SECRET",
	"otel.enabled":         "OTEL_ENABLED",
	"otel.endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
	"otel.instance_id":     "OTEL_INSTANCE_ID",
	"otel.token":           "OTEL_TOKEN",
	"otel.service_name":    "OTEL_SERVICE_NAME",
	"otel.service_version": "OTEL_SERVICE_VERSION",
	"otel.environment":     "OTEL_ENVIRONMENT",
	"log.level":            "LOG_LEVEL",
	"log.format":           "LOG_FORMAT",
}

// Load reads configuration from .env, an optional config.yaml and environment variables.
// Later sources win. Nested keys map to upper-case env names, e.g. matching.auto_assignment.max_alternatives
// is MATCHING_AUTO_ASSIGNMENT_MAX_ALTERNATIVES.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ReplaceAll(strings.ToUpper(key), ".", "_"), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.body_limit_kb", 64)

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "coachmatch")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.roster_cache_ttl", 5*time.Minute)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.instance_id", "")
	v.SetDefault("otel.token", "")
	v.SetDefault("otel.service_name", "coachmatch-api")
	v.SetDefault("otel.service_version", "dev")
	v.SetDefault("otel.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	auto := matching.DefaultAutoAssignmentConfig()
	v.SetDefault("matching.auto_assignment.weights.specialty", auto.Weights.Specialty)
	v.SetDefault("matching.auto_assignment.weights.utilization", auto.Weights.Utilization)
	v.SetDefault("matching.auto_assignment.weights.performance", auto.Weights.Performance)
	v.SetDefault("matching.auto_assignment.weights.price_fit", auto.Weights.PriceFit)
	v.SetDefault("matching.auto_assignment.max_alternatives", auto.MaxAlternatives)
	v.SetDefault("matching.auto_assignment.max_recommendations", auto.MaxRecommendations)
	v.SetDefault("matching.auto_assignment.enforce_availability", auto.EnforceAvailability)

	util := matching.DefaultUtilizationConfig()
	v.SetDefault("matching.utilization.window_days", util.WindowDays)
	v.SetDefault("matching.utilization.history_days", util.HistoryDays)
	v.SetDefault("matching.utilization.neutral_punctuality", util.NeutralPunctuality)
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MongoDB.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when telemetry is enabled")
	}
	if err := c.Matching.AutoAssignment.Validate(); err != nil {
		return fmt.Errorf("matching.auto_assignment: %w", err)
	}
	if err := c.Matching.Utilization.Validate(); err != nil {
		return fmt.Errorf("matching.utilization: %w", err)
	}
	return nil
}
