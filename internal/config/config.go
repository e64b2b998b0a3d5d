package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal.
type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Realtime RealtimeConfig
	Panel    PanelConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Session  SessionConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BackendConfig locates the operations backend and tunes outbound calls.
type BackendConfig struct {
	BaseURL            string
	HTTPTimeoutSeconds int
	RetryMaxAttempts   int
}

// RealtimeConfig tunes the upstream push connection.
type RealtimeConfig struct {
	URL                  string
	ReconnectMaxAttempts int
	ReconnectBackoffCapS int
}

// PanelConfig tunes panel refresh behavior.
type PanelConfig struct {
	RefreshCooldownSeconds int
	PollIntervalSeconds    int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SessionConfig defines session persistence parameters.
type SessionConfig struct {
	CookieName string
	TTLHours   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "factory-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Backend: BackendConfig{
			BaseURL:            getEnv("BACKEND_BASE_URL", "http://127.0.0.1:5000"),
			HTTPTimeoutSeconds: getEnvAsInt("BACKEND_HTTP_TIMEOUT_SECONDS", 15),
			RetryMaxAttempts:   getEnvAsInt("BACKEND_RETRY_MAX_ATTEMPTS", 3),
		},
		Realtime: RealtimeConfig{
			URL:                  getEnv("REALTIME_URL", "ws://127.0.0.1:5000/ws"),
			ReconnectMaxAttempts: getEnvAsInt("REALTIME_RECONNECT_MAX_ATTEMPTS", 5),
			ReconnectBackoffCapS: getEnvAsInt("REALTIME_RECONNECT_BACKOFF_CAP_SECONDS", 8),
		},
		Panel: PanelConfig{
			RefreshCooldownSeconds: getEnvAsInt("PANEL_REFRESH_COOLDOWN_SECONDS", 10),
			PollIntervalSeconds:    getEnvAsInt("PANEL_POLL_INTERVAL_SECONDS", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "portal_session"),
			TTLHours:   getEnvAsInt("SESSION_TTL_HOURS", 24),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// HTTPTimeout returns the outbound call timeout.
func (b BackendConfig) HTTPTimeout() time.Duration {
	if b.HTTPTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(b.HTTPTimeoutSeconds) * time.Second
}

// ReconnectBackoffCap returns the maximum delay between reconnect attempts.
func (r RealtimeConfig) ReconnectBackoffCap() time.Duration {
	if r.ReconnectBackoffCapS <= 0 {
		return 8 * time.Second
	}
	return time.Duration(r.ReconnectBackoffCapS) * time.Second
}

// RefreshCooldown returns the per-collection refresh cool-down window.
func (p PanelConfig) RefreshCooldown() time.Duration {
	if p.RefreshCooldownSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.RefreshCooldownSeconds) * time.Second
}

// PollInterval returns the background refresh interval.
func (p PanelConfig) PollInterval() time.Duration {
	if p.PollIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// TTL returns the session lifetime.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.TTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
