// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete service configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxUploadBytes     int64
	RequestTimeout     time.Duration
	AllowedOrigins     []string
}

// DatabaseConfig configures the PostgreSQL connection
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	URL      string
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the individual fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// AuthConfig configures bearer token validation
type AuthConfig struct {
	JWTSecret string
}

// IngestConfig configures the ingestion pipeline
type IngestConfig struct {
	AllowedSchemas []string
	WindowDays     int
}

// ObservabilityConfig toggles the metrics endpoint
type ObservabilityConfig struct {
	MetricsEnabled bool
}

// ProfilingConfig toggles the pprof server
type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getInt("SERVER_PORT", 8000, &errs),
			RateLimitPerSecond: getInt("RATE_LIMIT_PER_SECOND", 10, &errs),
			RateLimitBurst:     getInt("RATE_LIMIT_BURST", 20, &errs),
			MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 50<<20, &errs)),
			RequestTimeout:     getDuration("REQUEST_TIMEOUT", 2*time.Minute, &errs),
			AllowedOrigins:     getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432, &errs),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "sukhavati"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			URL:      getEnv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ingest: IngestConfig{
			AllowedSchemas: getList("INGEST_ALLOWED_SCHEMAS", []string{"reportes_sukhavati"}),
			WindowDays:     getInt("INGEST_WINDOW_DAYS", 7, &errs),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true, &errs),
		},
		Profiling: ProfilingConfig{
			Enabled: getBool("PPROF_ENABLED", false, &errs),
			Port:    getInt("PPROF_PORT", 6060, &errs),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if len(c.Ingest.AllowedSchemas) == 0 {
		errs = append(errs, errors.New("INGEST_ALLOWED_SCHEMAS must name at least one schema"))
	}
	if c.Ingest.WindowDays <= 0 {
		errs = append(errs, fmt.Errorf("invalid INGEST_WINDOW_DAYS %d", c.Ingest.WindowDays))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", c.Server.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
