package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("LINKHOARD_BASE_URL", "https://hoard.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "https://hoard.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s default", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3 default", cfg.MaxRetries)
	}
	if cfg.Cache.MaxEntries != 500 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.RateLimit.Limit != 100 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://hoard.example.com
max_retries: 5
retry_base_delay: 100ms
cache:
  ttl: 30s
  max_entries: 10
rate_limit:
  limit: 2
  window: 1s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.RetryBaseDelay != 100*time.Millisecond {
		t.Errorf("RetryBaseDelay = %v", cfg.RetryBaseDelay)
	}
	if cfg.Cache.TTL != 30*time.Second || cfg.Cache.MaxEntries != 10 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.RateLimit.Limit != 2 || cfg.RateLimit.Window != time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://hoard.example.com
timeout: 10s
`)
	t.Setenv("LINKHOARD_TIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want env override 3s", cfg.Timeout)
	}
}

func TestLoad_ExpandsCredentials(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://hoard.example.com
auth:
  identity: agent
  secret: ${LINKHOARD_TEST_SECRET}
`)
	t.Setenv("LINKHOARD_TEST_SECRET", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Secret != "hunter2" {
		t.Errorf("Auth.Secret = %q", cfg.Auth.Secret)
	}
}

func TestLoad_MissingCredentialVarFails(t *testing.T) {
	path := writeConfigFile(t, `
base_url: https://hoard.example.com
auth:
  identity: agent
  secret: ${LINKHOARD_TEST_UNSET_SECRET}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() succeeded with unset credential variable")
	}
	if !strings.Contains(err.Error(), "LINKHOARD_TEST_UNSET_SECRET") {
		t.Errorf("error does not name the missing variable: %v", err)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() succeeded for a nonexistent file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.BaseURL = "/api" }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"cache without ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"cache disabled", func(c *Config) { c.Cache.MaxEntries = 0; c.Cache.TTL = 0 }, false},
		{"limiter without window", func(c *Config) { c.RateLimit.Window = 0 }, true},
		{"limiter disabled", func(c *Config) { c.RateLimit.Limit = 0; c.RateLimit.Window = 0 }, false},
		{"secret without identity", func(c *Config) { c.Auth.Secret = "s" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.BaseURL = "https://hoard.example.com"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
