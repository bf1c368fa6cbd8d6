package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Load merges the discovered config files into v, decodes the result and
// validates it. Files in lower layers that do not exist are skipped; an
// explicit file that does not exist is an error. Environment variables and
// flags bound to v take precedence over every file.
func Load(v *viper.Viper, opts DiscoverOptions) (*Config, []ConfigLayerInfo, error) {
	layers := DiscoverPaths(opts)

	for i := range layers {
		layer := &layers[i]
		if _, err := os.Stat(layer.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) && layer.Level != LevelExplicit {
				continue
			}
			layer.Err = err
			return nil, layers, fmt.Errorf("reading %s config %s: %w", layer.Level, layer.Path, err)
		}

		v.SetConfigFile(layer.Path)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			layer.Err = err
			return nil, layers, fmt.Errorf("parsing %s config %s: %w", layer.Level, layer.Path, err)
		}
		layer.Loaded = true
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, layers, fmt.Errorf("decoding config: %w", err)
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, layers, &ValidationError{Errors: errs}
	}

	return &cfg, layers, nil
}

// Default returns the configuration built from defaults and the environment
// only.
func Default() (*Config, error) {
	var cfg Config
	if err := NewViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if u, err := url.Parse(cfg.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url: '%s' is not an absolute http(s) URL", cfg.API.BaseURL))
	}

	if cfg.Mods.Dir == "" {
		errs = append(errs, "mods.dir: is required")
	}
	if cfg.Mods.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("mods.concurrency: must be at least 1, got %d", cfg.Mods.Concurrency))
	}
	if cfg.Mods.MaxSize < 0 {
		errs = append(errs, fmt.Sprintf("mods.max_size: must not be negative, got %d", cfg.Mods.MaxSize))
	}

	if cfg.Resolve.Attempts < 1 {
		errs = append(errs, fmt.Sprintf("resolve.attempts: must be at least 1, got %d", cfg.Resolve.Attempts))
	}
	if cfg.Resolve.CacheTTL < 0 {
		errs = append(errs, "resolve.cache_ttl: must not be negative")
	}
	if cfg.Resolve.RetryDelay < 0 {
		errs = append(errs, "resolve.retry_delay: must not be negative")
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"timeouts.resolve", cfg.Timeouts.Resolve},
		{"timeouts.manifest", cfg.Timeouts.Manifest},
		{"timeouts.download", cfg.Timeouts.Download},
		{"timeouts.launch", cfg.Timeouts.Launch},
		{"launch.grace", cfg.Launch.Grace},
	}
	for _, d := range durations {
		if d.d < 0 {
			errs = append(errs, fmt.Sprintf("%s: must not be negative", d.key))
		}
	}

	if strings.TrimSpace(cfg.Launch.Command) == "" {
		errs = append(errs, "launch.command: is required")
	}
	for i, kv := range cfg.Launch.Env {
		if !strings.Contains(kv, "=") {
			errs = append(errs, fmt.Sprintf("launch.env[%d]: '%s' must be KEY=VALUE", i, kv))
		}
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: unknown level '%s'", cfg.Log.Level))
	}

	return errs
}
