// Package config loads the process configuration once at start-up. Values
// come from the environment, optionally seeded from .env files; nothing in
// the core packages reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"swapiapi/internal/logging"
)

// Config holds every runtime setting of the service.
type Config struct {
	AppAddr    string
	AppName    string
	AppVersion string

	DatabaseURL string
	AutoMigrate bool

	SwapiBaseURL    string
	VerifySwapiSSL  bool
	SwapiTimeout    time.Duration
	SwapiMaxRetries int
	SwapiRPS        float64

	DefaultPageSize int
	MaxPageSize     int
	ImportWorkers   int

	CORSAllowedOrigins   []string
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
	BlockedIPs           []string
	EnableHSTS           bool

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"app_addr":                ":8080",
	"app_name":                "SWAPI Voting API",
	"app_version":             "1.0.0",
	"auto_migrate":            false,
	"swapi_base_url":          "https://swapi.info/api/",
	"verify_swapi_ssl":        "true",
	"swapi_timeout":           "10s",
	"swapi_max_retries":       3,
	"swapi_rps":               5.0,
	"default_page_size":       20,
	"max_page_size":           100,
	"import_workers":          4,
	"cors_allowed_origins":    "*",
	"rate_limit_max_requests": 1000,
	"rate_limit_window":       "1h",
	"blocked_ips":             "",
	"enable_hsts":             "false",
	"log_level":               "info",
	"log_format":              "json",
}

// Load reads .env files (without overriding variables already set by the
// runtime) and builds a validated Config.
func Load() (*Config, error) {
	LoadEnvFiles()
	return FromViper(newViper())
}

// LoadEnvFiles loads .env then .env.local. godotenv never overrides variables
// that are already present, so the runtime environment always wins.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about.
	_ = v.BindEnv("database_url")
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppAddr:              v.GetString("app_addr"),
		AppName:              v.GetString("app_name"),
		AppVersion:           v.GetString("app_version"),
		DatabaseURL:          strings.TrimSpace(v.GetString("database_url")),
		AutoMigrate:          parseBool(v.GetString("auto_migrate")),
		SwapiBaseURL:         v.GetString("swapi_base_url"),
		VerifySwapiSSL:       parseBool(v.GetString("verify_swapi_ssl")),
		SwapiTimeout:         v.GetDuration("swapi_timeout"),
		SwapiMaxRetries:      v.GetInt("swapi_max_retries"),
		SwapiRPS:             v.GetFloat64("swapi_rps"),
		DefaultPageSize:      v.GetInt("default_page_size"),
		MaxPageSize:          v.GetInt("max_page_size"),
		ImportWorkers:        v.GetInt("import_workers"),
		CORSAllowedOrigins:   splitList(v.GetString("cors_allowed_origins")),
		RateLimitMaxRequests: v.GetInt("rate_limit_max_requests"),
		RateLimitWindow:      v.GetDuration("rate_limit_window"),
		BlockedIPs:           splitList(v.GetString("blocked_ips")),
		EnableHSTS:           parseBool(v.GetString("enable_hsts")),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required environment variable: DATABASE_URL"))
	}
	if c.SwapiBaseURL == "" {
		errs = append(errs, errors.New("SWAPI_BASE_URL must not be empty"))
	}
	if c.DefaultPageSize <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_PAGE_SIZE must be positive, got %d", c.DefaultPageSize))
	}
	if c.MaxPageSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_PAGE_SIZE must be positive, got %d", c.MaxPageSize))
	}
	if c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, fmt.Errorf("DEFAULT_PAGE_SIZE (%d) exceeds MAX_PAGE_SIZE (%d)", c.DefaultPageSize, c.MaxPageSize))
	}
	if c.ImportWorkers <= 0 {
		errs = append(errs, fmt.Errorf("IMPORT_WORKERS must be positive, got %d", c.ImportWorkers))
	}
	if c.SwapiMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("SWAPI_MAX_RETRIES must not be negative, got %d", c.SwapiMaxRetries))
	}
	if c.SwapiRPS <= 0 {
		errs = append(errs, fmt.Errorf("SWAPI_RPS must be positive, got %v", c.SwapiRPS))
	}
	if c.RateLimitMaxRequests <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// LogFields returns the settings worth logging at start-up, secrets masked.
func (c *Config) LogFields() map[string]any {
	return logging.Redact(map[string]any{
		"APP_ADDR":          c.AppAddr,
		"APP_VERSION":       c.AppVersion,
		"DATABASE_URL":      c.DatabaseURL,
		"SWAPI_BASE_URL":    c.SwapiBaseURL,
		"VERIFY_SWAPI_SSL":  c.VerifySwapiSSL,
		"DEFAULT_PAGE_SIZE": c.DefaultPageSize,
		"MAX_PAGE_SIZE":     c.MaxPageSize,
		"IMPORT_WORKERS":    c.ImportWorkers,
	})
}

// LoggingConfig derives the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stdout",
		Fields: map[string]string{"service": c.AppName, "version": c.AppVersion},
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
