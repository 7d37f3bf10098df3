package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// TaxAppURL is the base URL of the external tax application. Empty
	// disables the TAX_APP strategy at startup.
	TaxAppURL        string
	TaxAppTimeout    time.Duration
	TaxAppRetries    int
	BreakerMinReqs   int
	BreakerRatio     float64
	BreakerOpenFor   time.Duration
	ShippingTaxClass string

	// PricesTTL bounds how long a computed price snapshot stays fresh.
	PricesTTL time.Duration

	// Refresh worker knobs.
	RefreshInterval time.Duration
	RefreshBatch    int
	RefreshLockTTL  time.Duration

	RateLimitRPS int

	// WebhookURL receives checkout.prices_updated events when set.
	WebhookURL       string
	WebhookSecret    string
	WebhookReplayTTL time.Duration

	OTLPEndpoint string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TaxAppURL:        strings.TrimSpace(k.String("TAX_APP_URL")),
		TaxAppTimeout:    parseDuration(k.String("TAX_APP_TIMEOUT"), "5s"),
		TaxAppRetries:    intOrDefault(k.Int("TAX_APP_RETRIES"), 3),
		BreakerMinReqs:   intOrDefault(k.Int("TAX_APP_BREAKER_MIN_REQUESTS"), 10),
		BreakerRatio:     floatOrDefault(k.Float64("TAX_APP_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:   parseDuration(k.String("TAX_APP_BREAKER_OPEN_FOR"), "30s"),
		ShippingTaxClass: strings.TrimSpace(k.String("SHIPPING_TAX_CLASS")),

		PricesTTL: parseDuration(k.String("PRICES_TTL"), "1h"),

		RefreshInterval: parseDuration(k.String("REFRESH_INTERVAL"), "5m"),
		RefreshBatch:    intOrDefault(k.Int("REFRESH_BATCH"), 100),
		RefreshLockTTL:  parseDuration(k.String("REFRESH_LOCK_TTL"), "30s"),

		RateLimitRPS: intOrDefault(k.Int("RATE_LIMIT_RPS"), 50),

		WebhookURL:       strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:    strings.TrimSpace(k.String("WEBHOOK_SECRET")),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		OTLPEndpoint: strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
