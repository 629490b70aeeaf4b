// Package config loads and validates the hub's environment configuration.
package config

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"os"

	"github.com/quietloop/syncradio/internal/v1/logging"
)

const defaultPort = "8080"

// Config holds the hub's runtime configuration, all of it optional: an
// absent or unparseable PORT falls back to 8080 rather than failing
// startup.
type Config struct {
	Port string

	GoEnv          string
	LogLevel       string
	AllowedOrigins []string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	RateLimitWsIP string
}

// Load reads the process environment into a Config. It never fails:
// every field has a documented default, matching the hub's policy of
// tolerating missing or malformed configuration rather than refusing to
// start.
func Load() *Config {
	cfg := &Config{
		Port:          loadPort(),
		GoEnv:         getEnvOrDefault("GO_ENV", "production"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		RedisEnabled:  os.Getenv("REDIS_ENABLED") == "true",
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RateLimitWsIP: getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M"),
	}

	if cfg.RedisEnabled {
		cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	logLoadedConfig(cfg)
	return cfg
}

// loadPort reads PORT, falling back to 8080 if it is absent or not a
// valid decimal integer — the hub never refuses to start over a bad port
// string, it just ignores it.
func loadPort() string {
	raw := os.Getenv("PORT")
	if raw == "" {
		return defaultPort
	}
	if _, err := strconv.Atoi(raw); err != nil {
		logging.Warn(nil, "PORT is not a valid integer, using default", zap.String("port", raw), zap.String("default", defaultPort))
		return defaultPort
	}
	return raw
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func logLoadedConfig(cfg *Config) {
	logging.Info(nil, "configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("go_env", cfg.GoEnv),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("redis_enabled", cfg.RedisEnabled),
		zap.String("rate_limit_ws_ip", cfg.RateLimitWsIP),
	)
}
