// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          int
	DatabaseURL   string
	DBMigrate     bool
	MigrationsDir string
	RedisURL      string

	Auth AuthConfig

	AllowOrigins []string
	RateRPS      float64 // 0 disables rate limiting
	RateBurst    int

	WebhookMaxAttempts int
	WebhookInterval    time.Duration

	ModelPath      string
	HotspotRadiusM float64
	MinIncidents   int

	LogLevel  string
	LogPretty bool
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode        string // dev, hmac, jwks
	HMACSecret  string
	JWKSURL     string
	TenantClaim string
	RoleClaim   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8080),
		DatabaseURL:   strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DBMigrate:     getEnvAsBool("DB_MIGRATE", true),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "db/migrations"),
		RedisURL:      strings.TrimSpace(getEnv("REDIS_URL", "")),
		Auth: AuthConfig{
			Mode:        strings.ToLower(strings.TrimSpace(getEnv("AUTH_MODE", "dev"))),
			HMACSecret:  getEnv("AUTH_HMAC_SECRET", ""),
			JWKSURL:     getEnv("AUTH_JWKS_URL", ""),
			TenantClaim: getEnv("AUTH_TENANT_CLAIM", "tenant"),
			RoleClaim:   getEnv("AUTH_ROLE_CLAIM", "role"),
		},
		AllowOrigins:       splitList(getEnv("ALLOW_ORIGINS", "*")),
		RateRPS:            getEnvAsFloat("RATE_RPS", 0),
		RateBurst:          getEnvAsInt("RATE_BURST", 20),
		WebhookMaxAttempts: getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 10),
		WebhookInterval:    getEnvAsDuration("WEBHOOK_POLL_INTERVAL", time.Second),
		ModelPath:          getEnv("MODEL_PATH", "models/hotspot_model.yaml"),
		HotspotRadiusM:     getEnvAsFloat("HOTSPOT_RADIUS_M", 300),
		MinIncidents:       getEnvAsInt("HOTSPOT_MIN_INCIDENTS", 3),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_MODE=jwks")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}
	if c.RateRPS < 0 {
		return fmt.Errorf("RATE_RPS must be >= 0")
	}
	if c.WebhookMaxAttempts < 1 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be >= 1")
	}
	if c.HotspotRadiusM <= 0 {
		return fmt.Errorf("HOTSPOT_RADIUS_M must be > 0")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
