package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// envPrefix is prepended to environment overrides, e.g. LINKHOARD_BASE_URL
// or LINKHOARD_CACHE_TTL.
const envPrefix = "LINKHOARD"

// Load builds the configuration from defaults, an optional YAML file, and
// LINKHOARD_* environment variables, in increasing precedence. Credential
// fields are then expanded with ExpandEnvStrict and the result validated.
//
// path may be empty, in which case only defaults and environment apply. A
// named file that does not exist is an error; pointing at a config you do
// not have should fail loudly, not silently run on defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := Default()
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := expandCredentials(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandCredentials applies strict ${VAR} expansion to the secret-bearing
// fields. Only these fields are expanded so that literal dollar signs
// elsewhere in the config stay untouched.
func expandCredentials(cfg *Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"auth.identity", &cfg.Auth.Identity},
		{"auth.secret", &cfg.Auth.Secret},
		{"auth.token", &cfg.Auth.Token},
	}

	var errs []error
	for _, f := range fields {
		expanded, err := ExpandEnvStrict(*f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", f.name, err))
			continue
		}
		*f.value = expanded
	}
	return errors.Join(errs...)
}

// setDefaults registers every key with viper. AutomaticEnv only surfaces
// an environment variable during Unmarshal when viper already knows the
// key, so each field gets a default even when that default is the zero
// value.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("base_url", "")
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("retry_base_delay", d.RetryBaseDelay)
	v.SetDefault("health_path", d.HealthPath)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.sweep_interval", time.Duration(0))

	v.SetDefault("rate_limit.limit", d.RateLimit.Limit)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)

	v.SetDefault("auth.identity", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.refresh_lead", d.Auth.RefreshLead)
	v.SetDefault("auth.login_path", "")
	v.SetDefault("auth.refresh_path", "")

	v.SetDefault("observe.service_name", d.Observe.ServiceName)
	v.SetDefault("observe.log_level", d.Observe.LogLevel)
	v.SetDefault("observe.tracing_exporter", "")
	v.SetDefault("observe.metrics_exporter", "")
	v.SetDefault("observe.sample_pct", 0.0)
}
