package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration. Infra values live here and are
// passed as typed values into builders; nothing reads the environment after Load.
type Config struct {
	Addr       string
	ControlDSN string

	// Tenant databases share one set of credentials; host and database name
	// come from the tenant record.
	TenantDBUser     string
	TenantDBPassword string
	TenantDBSSLMode  string

	AuthSecret string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Addr:             envString("CHRONA_ADDR", ":8080"),
		ControlDSN:       strings.TrimSpace(os.Getenv("CHRONA_PG_DSN")),
		TenantDBUser:     envString("CHRONA_TENANT_DB_USER", "chrona"),
		TenantDBPassword: strings.TrimSpace(os.Getenv("CHRONA_TENANT_DB_PASSWORD")),
		TenantDBSSLMode:  envString("CHRONA_TENANT_DB_SSLMODE", "disable"),
		AuthSecret:       strings.TrimSpace(os.Getenv("CHRONA_AUTH_SECRET")),
		Issuer:           envString("CHRONA_ISSUER", "chrona"),
		AccessTTL:        envDuration("CHRONA_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       envDuration("CHRONA_REFRESH_TTL", 14*24*time.Hour),
		RateBurst:        envInt("CHRONA_RATE_BURST", 20),
		RatePerSecond:    envInt("CHRONA_RATE_PER_SECOND", 10),
		MaxBodyBytes:     int64(envInt("CHRONA_MAX_BODY_BYTES", 1<<20)),
	}
	if cfg.ControlDSN == "" {
		return Config{}, errors.New("CHRONA_PG_DSN is required")
	}
	if cfg.AuthSecret == "" {
		return Config{}, errors.New("CHRONA_AUTH_SECRET is required")
	}
	return cfg, nil
}

func envString(name, fallback string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
