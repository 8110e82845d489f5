// Package config loads the environment-provided service configuration.
// Secrets are mandatory: startup fails loudly instead of substituting
// ephemeral values that would invalidate in-flight logins on restart.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Config holds everything the integration layer reads from the environment.
type Config struct {
	Addr string

	// Identity/data platform.
	PlatformURL string
	ServiceKey  string
	JWTSecret   string

	// OAuth round-trip.
	StateSecret     string
	DefaultRedirect string

	// Browser origins allowed to call the API cross-site with credentials.
	// Localhost origins are always permitted for development.
	AllowedOrigins []string

	// Session cookies.
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Third-party accounting API. Optional: when absent, /sync reports the
	// configuration as missing instead of failing startup.
	BooksURL       string
	BooksCompanyID string
	BooksToken     string

	// Media storage.
	Bucket string

	// Postgres. Optional: when absent, store-backed endpoints degrade.
	PGDSN string
}

// Load reads the environment and validates mandatory values.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            env("TUTORGATE_ADDR", ":8080"),
		PlatformURL:     strings.TrimRight(os.Getenv("TUTORGATE_PLATFORM_URL"), "/"),
		ServiceKey:      os.Getenv("TUTORGATE_SERVICE_KEY"),
		JWTSecret:       os.Getenv("TUTORGATE_JWT_SECRET"),
		StateSecret:     os.Getenv("TUTORGATE_STATE_SECRET"),
		DefaultRedirect: env("TUTORGATE_DEFAULT_REDIRECT", "/"),
		AllowedOrigins:  splitList(os.Getenv("TUTORGATE_ALLOWED_ORIGINS")),
		CookieName:      env("TUTORGATE_COOKIE_NAME", "tg-access-token"),
		CookieDomain:    os.Getenv("TUTORGATE_COOKIE_DOMAIN"),
		CookiePath:      env("TUTORGATE_COOKIE_PATH", "/"),
		CookieSecure:    env("TUTORGATE_COOKIE_SECURE", "true") == "true",
		CookieSameSite:  parseSameSite(env("TUTORGATE_COOKIE_SAMESITE", "Lax")),
		BooksURL:        strings.TrimRight(env("TUTORGATE_BOOKS_URL", "https://sandbox-quickbooks.api.intuit.com"), "/"),
		BooksCompanyID:  os.Getenv("TUTORGATE_BOOKS_COMPANY_ID"),
		BooksToken:      os.Getenv("TUTORGATE_BOOKS_TOKEN"),
		Bucket:          env("TUTORGATE_BUCKET", "media_recordings"),
		PGDSN:           os.Getenv("TUTORGATE_PG_DSN"),
	}

	missing := []string{}
	if cfg.PlatformURL == "" {
		missing = append(missing, "TUTORGATE_PLATFORM_URL")
	}
	if cfg.ServiceKey == "" {
		missing = append(missing, "TUTORGATE_SERVICE_KEY")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "TUTORGATE_JWT_SECRET")
	}
	if strings.TrimSpace(cfg.StateSecret) == "" {
		missing = append(missing, "TUTORGATE_STATE_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// BooksConfigured reports whether the accounting sync credentials are present.
func (c *Config) BooksConfigured() bool {
	return c.BooksCompanyID != "" && c.BooksToken != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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
