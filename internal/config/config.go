package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
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
	JWTSecret          string
	CORSAllowedOrigins []string

	BasketTTL         time.Duration
	BasketSaveTimeout time.Duration

	CatalogCacheTTL     time.Duration
	CatalogDefaultLimit int
	CatalogMaxLimit     int

	ShopName        string
	ShopTagline     string
	OrderTimezone   string
	OrderTimeFormat string

	TelegramURL         string
	ContactFacebook     string
	ContactPhone        string
	ContactMapURL       string
	ContactAddress      string
	ContactHours        []string
	OrderWebhookURL     string
	OrderWebhookSecret  string
	ReceiptReadyTimeout time.Duration

	// WebhookDelivery is "direct" (sent from the API process) or "queue"
	// (enqueued in Redis and sent by cmd/worker).
	WebhookDelivery        string
	QueuePrefix            string
	QueueConcurrency       int
	QueueVisibilityTimeout time.Duration
	QueueMaxAttempts       int

	OrderSubmitLockTTL   time.Duration
	OrderRateLimitWindow time.Duration
	OrderRateLimitMax    int
	IdempotencyTTL       time.Duration

	AccessTokenTTL time.Duration
	AdminUsername  string
	AdminPassword  string

	BodyLimitBytes         int64
	SecurityHeadersEnabled bool
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
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		BasketTTL:         parseDuration(k.String("BASKET_TTL"), "72h"),
		BasketSaveTimeout: parseDuration(k.String("BASKET_SAVE_TIMEOUT"), "2s"),

		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogDefaultLimit: parseInt(k.String("CATALOG_DEFAULT_LIMIT"), 20),
		CatalogMaxLimit:     parseInt(k.String("CATALOG_MAX_LIMIT"), 100),

		ShopName:        valueOrDefault(k.String("SHOP_NAME"), "Slow Drip"),
		ShopTagline:     valueOrDefault(k.String("SHOP_TAGLINE"), "Coffee & Kitchen"),
		OrderTimezone:   strings.TrimSpace(k.String("ORDER_TIMEZONE")),
		OrderTimeFormat: k.String("ORDER_TIME_FORMAT"),

		TelegramURL:         strings.TrimSpace(k.String("TELEGRAM_URL")),
		ContactFacebook:     strings.TrimSpace(k.String("CONTACT_FACEBOOK")),
		ContactPhone:        strings.TrimSpace(k.String("CONTACT_PHONE")),
		ContactMapURL:       strings.TrimSpace(k.String("CONTACT_MAP_URL")),
		ContactAddress:      strings.TrimSpace(k.String("CONTACT_ADDRESS")),
		ContactHours:        splitOn(k.String("CONTACT_HOURS"), ";"),
		OrderWebhookURL:     strings.TrimSpace(k.String("ORDER_WEBHOOK_URL")),
		OrderWebhookSecret:  k.String("ORDER_WEBHOOK_SECRET"),
		ReceiptReadyTimeout: parseDuration(k.String("RECEIPT_READY_TIMEOUT"), "10s"),

		WebhookDelivery:        strings.ToLower(valueOrDefault(k.String("WEBHOOK_DELIVERY"), "direct")),
		QueuePrefix:            valueOrDefault(k.String("QUEUE_PREFIX"), "slowdrip"),
		QueueConcurrency:       parseInt(k.String("QUEUE_CONCURRENCY"), 4),
		QueueVisibilityTimeout: parseDuration(k.String("QUEUE_VISIBILITY_TIMEOUT"), "30s"),
		QueueMaxAttempts:       parseInt(k.String("QUEUE_MAX_ATTEMPTS"), 8),

		OrderSubmitLockTTL:   parseDuration(k.String("ORDER_SUBMIT_LOCK_TTL"), "30s"),
		OrderRateLimitWindow: parseDuration(k.String("ORDER_RATE_LIMIT_WINDOW"), "1m"),
		OrderRateLimitMax:    parseInt(k.String("ORDER_RATE_LIMIT_MAX"), 10),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),
		AdminUsername:  valueOrDefault(k.String("ADMIN_USERNAME"), "admin"),
		AdminPassword:  k.String("ADMIN_PASSWORD"),

		BodyLimitBytes:         int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeadersEnabled: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.CatalogMaxLimit < cfg.CatalogDefaultLimit {
		return nil, fmt.Errorf("CATALOG_MAX_LIMIT (%d) must be >= CATALOG_DEFAULT_LIMIT (%d)", cfg.CatalogMaxLimit, cfg.CatalogDefaultLimit)
	}
	switch cfg.WebhookDelivery {
	case "direct":
	case "queue":
		if cfg.RedisURL == "" {
			return nil, errors.New("WEBHOOK_DELIVERY=queue requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("WEBHOOK_DELIVERY must be direct or queue, got %q", cfg.WebhookDelivery)
	}
	if cfg.OrderWebhookURL != "" && cfg.OrderWebhookSecret == "" {
		return nil, errors.New("ORDER_WEBHOOK_SECRET is required when ORDER_WEBHOOK_URL is set")
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "development" || env == "dev" || env == "local"
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
	return splitOn(value, ",")
}

func splitOn(value, sep string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, sep)
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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
