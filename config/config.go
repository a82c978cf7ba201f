// Package config loads and validates the LinkHoard configuration from a
// YAML file and LINKHOARD_* environment overrides. Credential fields
// support strict ${VAR} environment expansion so secrets never live in
// the file itself.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	// BaseURL is the upstream LinkHoard service root. Required.
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each dispatch attempt.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxRetries bounds redispatches of retryable failures.
	MaxRetries int `mapstructure:"max_retries"`

	// RetryBaseDelay seeds the exponential backoff.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`

	// HealthPath is the upstream health probe endpoint.
	HealthPath string `mapstructure:"health_path"`

	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Observe   ObserveConfig   `mapstructure:"observe"`
}

// CacheConfig configures the request cache.
type CacheConfig struct {
	// TTL is how long cached reads stay fresh.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxEntries bounds the cache; 0 disables caching.
	MaxEntries int `mapstructure:"max_entries"`

	// SweepInterval enables the background sweeper when positive.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RateLimitConfig configures per-endpoint admission control.
type RateLimitConfig struct {
	// Limit is the per-window budget per endpoint; 0 disables admission
	// control.
	Limit int `mapstructure:"limit"`

	// Window is the trailing window length.
	Window time.Duration `mapstructure:"window"`
}

// AuthConfig configures the credential lifecycle.
type AuthConfig struct {
	// Identity and Secret feed the login exchange. Both support strict
	// ${VAR} environment expansion.
	Identity string `mapstructure:"identity"`
	Secret   string `mapstructure:"secret"`

	// Token is a pre-issued token; when set, no login is performed.
	// Supports ${VAR} expansion.
	Token string `mapstructure:"token"`

	// RefreshLead is how far ahead of expiry the scheduled refresh fires.
	RefreshLead time.Duration `mapstructure:"refresh_lead"`

	// LoginPath and RefreshPath override the upstream auth endpoints.
	LoginPath   string `mapstructure:"login_path"`
	RefreshPath string `mapstructure:"refresh_path"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName     string  `mapstructure:"service_name"`
	LogLevel        string  `mapstructure:"log_level"`
	TracingExporter string  `mapstructure:"tracing_exporter"`
	MetricsExporter string  `mapstructure:"metrics_exporter"`
	SamplePct       float64 `mapstructure:"sample_pct"`
}

// Default returns the configuration defaults applied before file and
// environment overrides.
func Default() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 250 * time.Millisecond,
		HealthPath:     "/health",
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 500,
		},
		RateLimit: RateLimitConfig{
			Limit:  100,
			Window: time.Minute,
		},
		Auth: AuthConfig{
			RefreshLead: time.Minute,
		},
		Observe: ObserveConfig{
			ServiceName: "linkhoard",
			LogLevel:    "info",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: base_url %q is not an absolute URL", c.BaseURL)
	}

	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("config: max_retries must not be negative")
	}
	if c.RetryBaseDelay <= 0 {
		return errors.New("config: retry_base_delay must be positive")
	}

	if c.Cache.MaxEntries < 0 {
		return errors.New("config: cache.max_entries must not be negative")
	}
	if c.Cache.MaxEntries > 0 && c.Cache.TTL <= 0 {
		return errors.New("config: cache.ttl must be positive when caching is enabled")
	}

	if c.RateLimit.Limit < 0 {
		return errors.New("config: rate_limit.limit must not be negative")
	}
	if c.RateLimit.Limit > 0 && c.RateLimit.Window <= 0 {
		return errors.New("config: rate_limit.window must be positive when the limiter is enabled")
	}

	if c.Auth.Secret != "" && c.Auth.Identity == "" {
		return errors.New("config: auth.identity is required when auth.secret is set")
	}

	return nil
}
