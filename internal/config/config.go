package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env      string // "development", "production", etc.
	LogLevel string

	// Server
	ServerAddr string
	BaseURL    string

	// Database
	DatabaseURL string

	// Redis backs sessions and the rate limiter. Empty keeps both in memory.
	RedisURL string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// Session
	SessionSecret      string // Used for signing cookies (min 32 chars)
	SessionIdleTimeout time.Duration

	// CORS
	CORSOrigins string // Comma-separated allowed origins

	// Rate limiting
	RateLimitPerMinute int

	// Live updates
	AnnotationWorkers int           // Concurrent annotation fetches per snapshot
	StreamKeepAlive   time.Duration // SSE keep-alive comment interval

	// Link health checks
	LinkCheckInterval time.Duration // 0 disables the checker
	LinkCheckMaxAge   time.Duration

	// Family file with pre-registered members (see yaml_config.go)
	FamilyFile string

	// Site Branding
	SiteTitle   string // env: SITE_TITLE, default: "Gift List"
	SiteTagline string // env: SITE_TAGLINE
	SiteFooter  string // env: SITE_FOOTER
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present; variables
// already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServerAddr:         getEnv("SERVER_ADDR", ":3000"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:3000"),
		DatabaseURL:        getEnv("DATABASE_URL", "postgres://localhost:5432/giftlist?sslmode=disable"),
		RedisURL:           getEnv("REDIS_URL", ""),
		TLSEnabled:         getEnv("TLS_ENABLED", "") != "",
		TLSCertFile:        getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:         getEnv("TLS_KEY_FILE", ""),
		OIDCIssuer:         getEnv("OIDC_ISSUER", ""),
		OIDCClientID:       getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret:   getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:    getEnv("OIDC_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		SessionSecret:      getEnv("SESSION_SECRET", "change-me-in-production-min-32-chars"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		CORSOrigins:        getEnv("CORS_ORIGINS", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		AnnotationWorkers:  getEnvInt("ANNOTATION_WORKERS", 8),
		StreamKeepAlive:    getEnvDuration("STREAM_KEEPALIVE", 25*time.Second),
		LinkCheckInterval:  getEnvDuration("LINK_CHECK_INTERVAL", 6*time.Hour),
		LinkCheckMaxAge:    getEnvDuration("LINK_CHECK_MAX_AGE", 24*time.Hour),
		FamilyFile:         getEnv("FAMILY_FILE", "family.yaml"),

		SiteTitle:   getEnv("SITE_TITLE", "Gift List"),
		SiteTagline: getEnv("SITE_TAGLINE", "Wish lists for the whole family"),
		SiteFooter:  getEnv("SITE_FOOTER", "Gift List - the recipient never sees giver notes"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// AllowedOrigins returns the CORS origin list, defaulting to the base URL.
func (c *Config) AllowedOrigins() []string {
	origins := c.BaseURL
	if c.CORSOrigins != "" {
		origins = c.CORSOrigins
	}
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
