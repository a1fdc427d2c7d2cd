package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("BOOKING_REJECT_PAST_DATES", "")
	t.Setenv("REDIS_POOL_SIZE", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://clinicfinder:clinicfinder@db:5432/clinicfinder?sslmode=disable", cfg.DBURL)
	assert.Equal(t, "Asia/Manila", cfg.Timezone.String())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	assert.False(t, cfg.CookieSecure)
	assert.NotEmpty(t, cfg.MagicLinkSecret)
	assert.False(t, cfg.RejectPastBookings)
	assert.Equal(t, 10, cfg.RedisPoolSize)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
}

func TestLoad_ProdRequiresMagicLinkSecret(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAGIC_LINK_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_SameSiteNoneNeedsSecure(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("COOKIE_SAMESITE", "none")
	t.Setenv("COOKIE_SECURE", "false")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("COOKIE_SECURE", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, http.SameSiteNoneMode, cfg.CookieSameSite)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SESSION_TTL_HOURS", "2")
	t.Setenv("BOOKING_REJECT_PAST_DATES", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.RejectPastBookings)
	assert.Equal(t, 0.1, cfg.OTelSampleRatio)
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}

func TestGetEnvFloat_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_RATIO", "half")
	assert.Equal(t, 0.5, getEnvFloat("SOME_RATIO", 0.5))
}
