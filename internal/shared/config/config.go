package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port              string
	Env               string
	LogLevel          string
	CORSAllowedOrigin string

	// Upstream provider
	TogetherAPIKey  string
	TogetherBaseURL string
	HeliconeAPIKey  string
	UpstreamTimeout time.Duration

	// Quota store
	RedisURL           string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	RateLimitAnalytics bool

	// Geofence
	IPStackAPIKey    string
	GeoIPDBPath      string
	BlockedCountries []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		CORSAllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "*"),
		TogetherAPIKey:     getEnv("TOGETHER_API_KEY", ""),
		TogetherBaseURL:    getEnv("TOGETHER_BASE_URL", ""),
		HeliconeAPIKey:     getEnv("HELICONE_API_KEY", ""),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 0),
		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitRequests:  getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", 1440*time.Minute),
		RateLimitAnalytics: getEnvBool("RATE_LIMIT_ANALYTICS", true),
		IPStackAPIKey:      getEnv("IPSTACK_API_KEY", ""),
		GeoIPDBPath:        getEnv("GEOIP_DB_PATH", ""),
		BlockedCountries:   ParseCountryList(getEnv("BLOCKED_COUNTRIES", "RU")),
	}

	if cfg.RateLimitRequests <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", cfg.RateLimitWindow)
	}
	if cfg.UpstreamTimeout < 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT must not be negative, got %s", cfg.UpstreamTimeout)
	}

	return cfg, nil
}

// RateLimitEnabled reports whether a quota store is configured.
func (c *Config) RateLimitEnabled() bool {
	return c.RedisURL != ""
}

// GeofenceEnabled reports whether the country check can run. It is gated
// behind the quota store, needs a lookup source and something to block.
func (c *Config) GeofenceEnabled() bool {
	return c.RateLimitEnabled() &&
		(c.IPStackAPIKey != "" || c.GeoIPDBPath != "") &&
		len(c.BlockedCountries) > 0
}

// ParseCountryList turns "ru, by ,RU" into ["RU", "BY"].
func ParseCountryList(raw string) []string {
	codes := lo.Map(strings.Split(raw, ","), func(code string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(code))
	})
	return lo.Uniq(lo.Filter(codes, func(code string, _ int) bool {
		return code != ""
	}))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
