// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	// Session persistence.
	SessionStore    string `mapstructure:"SESSION_STORE"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`
	RedisURL        string `mapstructure:"REDIS_URL"`

	// Remote backend-as-a-service and AI completion endpoint.
	BackendURL           string `mapstructure:"BACKEND_URL"`
	InsightURL           string `mapstructure:"INSIGHT_URL"`
	InsightAPIKey        string `mapstructure:"INSIGHT_API_KEY"`
	RemoteTimeoutSeconds int    `mapstructure:"REMOTE_TIMEOUT_SECONDS"`

	// Tracing.
	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`

	// Local stand-in for the remote backend (cmd/fakebackend).
	FakeBackendPort   string `mapstructure:"FAKE_BACKEND_PORT"`
	FakeBackendDSN    string `mapstructure:"FAKE_BACKEND_DSN"`
	FakeBackendSecret string `mapstructure:"FAKE_BACKEND_SECRET"`
	FakeBackendSeed   string `mapstructure:"FAKE_BACKEND_SEED"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8380")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "ai_insight=on")
	viper.SetDefault("SESSION_STORE", "redis")
	viper.SetDefault("SESSION_TTL_HOURS", 24)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("BACKEND_URL", "http://localhost:8390")
	viper.SetDefault("INSIGHT_URL", "")
	viper.SetDefault("INSIGHT_API_KEY", "")
	viper.SetDefault("REMOTE_TIMEOUT_SECONDS", 15)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	viper.SetDefault("FAKE_BACKEND_PORT", "8390")
	viper.SetDefault("FAKE_BACKEND_DSN", "file:synerthree_fake.db?cache=shared")
	viper.SetDefault("FAKE_BACKEND_SECRET", "fake-backend-secret-for-local-dev-only")
	viper.SetDefault("FAKE_BACKEND_SEED", "fixture")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	c.InsightURL = strings.TrimSpace(c.InsightURL)
	if c.InsightURL == "" && c.BackendURL != "" {
		c.InsightURL = c.BackendURL + "/ai/insight"
	}
}

// IsProduction reports whether the gateway runs with production rules.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// RateLimitEnabled reports whether per-caller rate limits apply. Local and
// test environments are never throttled.
func (c *Config) RateLimitEnabled() bool {
	switch c.Env {
	case "", "development", "test", "stress":
		return false
	}
	return true
}

// SessionTTL is the lifetime of a gateway session when the backend token carries no expiry.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RemoteTimeout bounds every call to the remote backend and the insight endpoint.
func (c *Config) RemoteTimeout() time.Duration {
	if c.RemoteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RemoteTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	backend, err := url.Parse(c.BackendURL)
	if err != nil || backend.Scheme == "" || backend.Host == "" {
		return fmt.Errorf("BACKEND_URL %q is not an absolute URL", c.BackendURL)
	}

	switch c.SessionStore {
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_STORE is redis")
		}
	case "memory":
	default:
		return fmt.Errorf("SESSION_STORE must be redis or memory, got %q", c.SessionStore)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if backend.Scheme != "https" {
			return errors.New("BACKEND_URL must use https in production")
		}
		if c.SessionStore == "memory" {
			log.Println("WARNING: SESSION_STORE is 'memory' in production. Sessions will not survive a restart.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
