package config

import "time"

// Config is the decoded quickjoin configuration. Keys are listed with their
// defaults in defaults.go.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Mods     ModsConfig     `mapstructure:"mods"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Resolve  ResolveConfig  `mapstructure:"resolve"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Launch   LaunchConfig   `mapstructure:"launch"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Log      LogConfig      `mapstructure:"log"`
}

// APIConfig locates the directory and manifest services.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ModsConfig controls the local mod directory and downloads.
type ModsConfig struct {
	Dir         string `mapstructure:"dir"`
	CacheDir    string `mapstructure:"cache_dir"` // empty disables the content cache
	Concurrency int    `mapstructure:"concurrency"`
	MaxSize     int64  `mapstructure:"max_size"` // bytes per file
}

// ManifestConfig controls manifest fetching.
type ManifestConfig struct {
	// Strict makes an unavailable manifest fail the join instead of being
	// treated as an empty one.
	Strict bool `mapstructure:"strict"`
}

// ResolveConfig controls identifier resolution.
type ResolveConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"` // 0 disables the cache
	CachePath  string        `mapstructure:"cache_path"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// TimeoutsConfig bounds each network operation independently.
type TimeoutsConfig struct {
	Resolve  time.Duration `mapstructure:"resolve"`
	Manifest time.Duration `mapstructure:"manifest"`
	Download time.Duration `mapstructure:"download"`
	Launch   time.Duration `mapstructure:"launch"`
}

// LaunchConfig describes the game launcher process.
type LaunchConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Env     []string      `mapstructure:"env"`
	Grace   time.Duration `mapstructure:"grace"`
}

// PolicyConfig decides which mod failures stop a join.
type PolicyConfig struct {
	RequiredMods          []string `mapstructure:"required_mods"`
	HonorManifestRequired bool     `mapstructure:"honor_manifest_required"`
	AbortOnAnyFailure     bool     `mapstructure:"abort_on_any_failure"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `mapstructure:"level"`
}
