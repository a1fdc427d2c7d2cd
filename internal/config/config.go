package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Manila must resolve in minimal containers

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	DBMaxConns int32

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	SessionTTL     time.Duration
	CookieDomain   string
	CookieSameSite http.SameSite
	CookieSecure   bool

	CORSAllowedOrigins []string

	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string

	MagicLinkSecret string
	MagicLinkTTL    time.Duration
	PublicBaseURL   string

	Timezone *time.Location

	OTLPEndpoint    string
	OTelSampleRatio float64

	LoginRatePerMinute   int
	BookingRatePerMinute int
	// RejectPastBookings refuses booking and reschedule dates before today.
	RejectPastBookings bool
	CacheTTL           time.Duration
	CacheMaxEntries    int

	WorkerPoll        time.Duration
	WorkerHealthPort  int
	WorkerMaxAttempts int

	// NotifierDelay and NotifierFail simulate a slow or failing mail provider.
	NotifierDelay time.Duration
	NotifierFail  bool
}

func (c Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Load reads the environment. A .env file in the working directory is applied
// first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	tzName := getEnv("APP_TIMEZONE", "Asia/Manila")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE %q: %w", tzName, err)
	}

	cfg := Config{
		Env:        env,
		Port:       getEnvInt("PORT", 8080),
		DBURL:      getEnv("DATABASE_URL", buildDBURL()),
		DBMaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 10),

		SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
		CookieSameSite: parseSameSite(getEnv("COOKIE_SAMESITE", "lax")),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),

		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "System"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "Admin"),

		MagicLinkSecret: getEnv("MAGIC_LINK_SECRET", ""),
		MagicLinkTTL:    time.Duration(getEnvInt("MAGIC_LINK_TTL_HOURS", 72)) * time.Hour,
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:5173"),

		Timezone: loc,

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),

		LoginRatePerMinute:   getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		BookingRatePerMinute: getEnvInt("BOOKING_RATE_PER_MINUTE", 20),
		RejectPastBookings:   getEnvBool("BOOKING_REJECT_PAST_DATES", false),
		CacheTTL:             time.Duration(getEnvInt("CACHE_TTL_SECONDS", 30)) * time.Second,
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 1024),

		WorkerPoll:        time.Duration(getEnvInt("WORKER_POLL_MS", 1000)) * time.Millisecond,
		WorkerHealthPort:  getEnvInt("WORKER_HEALTH_PORT", 8081),
		WorkerMaxAttempts: getEnvInt("WORKER_MAX_ATTEMPTS", 10),

		NotifierDelay: time.Duration(getEnvInt("NOTIFIER_SLEEP_MS", 0)) * time.Millisecond,
		NotifierFail:  getEnvBool("NOTIFIER_FAIL", false),
	}
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.IsProd())

	if cfg.MagicLinkSecret == "" {
		if cfg.IsProd() {
			return Config{}, fmt.Errorf("MAGIC_LINK_SECRET is required in %s", env)
		}
		cfg.MagicLinkSecret = "dev-magic-link-secret"
	}

	// browsers reject SameSite=None without Secure
	if cfg.CookieSameSite == http.SameSiteNoneMode && !cfg.CookieSecure {
		return Config{}, fmt.Errorf("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	return cfg, nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "clinicfinder")
	pass := getEnv("DB_PASSWORD", "clinicfinder")
	name := getEnv("DB_NAME", "clinicfinder")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
