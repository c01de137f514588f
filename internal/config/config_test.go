package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clean unsets every key the tests depend on so ambient variables do not leak in.
func clean(overrides map[string]string) map[string]string {
	env := map[string]string{
		"APP_ENV": "", "PORT": "", "JWT_SECRET": "", "REDIS_URL": "", "DATABASE_URL": "",
		"BASKET_TTL": "", "CATALOG_DEFAULT_LIMIT": "", "CATALOG_MAX_LIMIT": "",
		"ORDER_WEBHOOK_URL": "", "ORDER_WEBHOOK_SECRET": "", "SECURITY_HEADERS_ENABLED": "",
		"CORS_ALLOWED_ORIGINS": "", "SHOP_NAME": "", "ORDER_RATE_LIMIT_MAX": "",
		"CONTACT_HOURS": "", "WEBHOOK_DELIVERY": "",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

func TestDefaultsInDevelopment(t *testing.T) {
	cfg, err := LoadForTests(clean(nil))
	require.NoError(t, err)
	require.True(t, cfg.IsDevelopment())
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.NotEmpty(t, cfg.JWTSecret)
	require.Empty(t, cfg.RedisURL)
	require.Empty(t, cfg.DatabaseURL)
	require.Equal(t, 72*time.Hour, cfg.BasketTTL)
	require.Equal(t, 20, cfg.CatalogDefaultLimit)
	require.Equal(t, "Slow Drip", cfg.ShopName)
	require.Equal(t, 10, cfg.OrderRateLimitMax)
	require.True(t, cfg.SecurityHeadersEnabled)
}

func TestSecretRequiredOutsideDevelopment(t *testing.T) {
	_, err := LoadForTests(clean(map[string]string{"APP_ENV": "production"}))
	require.ErrorContains(t, err, "JWT_SECRET")

	cfg, err := LoadForTests(clean(map[string]string{"APP_ENV": "production", "JWT_SECRET": "s3cret"}))
	require.NoError(t, err)
	require.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestOverrides(t *testing.T) {
	cfg, err := LoadForTests(clean(map[string]string{
		"PORT":                     ":9090",
		"BASKET_TTL":               "90m",
		"CORS_ALLOWED_ORIGINS":     "https://a.example, ,https://b.example",
		"SECURITY_HEADERS_ENABLED": "off",
		"ORDER_RATE_LIMIT_MAX":     "not-a-number",
		"CONTACT_HOURS":            "Mon-Fri 7:00-21:00; Sun 8:00-18:00",
	}))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 90*time.Minute, cfg.BasketTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.SecurityHeadersEnabled)
	require.Equal(t, 10, cfg.OrderRateLimitMax)
	require.Equal(t, []string{"Mon-Fri 7:00-21:00", "Sun 8:00-18:00"}, cfg.ContactHours)
}

func TestValidation(t *testing.T) {
	_, err := LoadForTests(clean(map[string]string{"CATALOG_DEFAULT_LIMIT": "50", "CATALOG_MAX_LIMIT": "10"}))
	require.Error(t, err)

	_, err = LoadForTests(clean(map[string]string{"ORDER_WEBHOOK_URL": "https://hooks.example/orders"}))
	require.ErrorContains(t, err, "ORDER_WEBHOOK_SECRET")

	_, err = LoadForTests(clean(map[string]string{"WEBHOOK_DELIVERY": "queue"}))
	require.ErrorContains(t, err, "REDIS_URL")

	_, err = LoadForTests(clean(map[string]string{"WEBHOOK_DELIVERY": "carrier-pigeon"}))
	require.ErrorContains(t, err, "WEBHOOK_DELIVERY")

	cfg, err := LoadForTests(clean(map[string]string{"WEBHOOK_DELIVERY": "Queue", "REDIS_URL": "redis://localhost:6379/0"}))
	require.NoError(t, err)
	require.Equal(t, "queue", cfg.WebhookDelivery)
	require.Equal(t, 8, cfg.QueueMaxAttempts)
}
