package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sealantern/quickjoin/internal/cache"
)

// isolated returns options that see no system or user config.
func isolated(t *testing.T, explicit string) DiscoverOptions {
	t.Helper()
	dir := t.TempDir()
	return DiscoverOptions{
		ExplicitPath:     explicit,
		SystemConfigPath: filepath.Join(dir, "none-system.yaml"),
		UserConfigPath:   filepath.Join(dir, "none-user.yaml"),
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func containsSubstring(errs []string, sub string) bool {
	for _, e := range errs {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SEALANTERN_API", "")
	t.Setenv("QUICKJOIN_API_BASE_URL", "")

	cfg, layers, err := Load(NewViper(), isolated(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, l := range layers {
		if l.Loaded {
			t.Errorf("layer %s should not be loaded", l.Path)
		}
	}

	if cfg.API.BaseURL != DefaultBaseURL {
		t.Errorf("base_url = %q, want %q", cfg.API.BaseURL, DefaultBaseURL)
	}
	if cfg.Mods.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Mods.Concurrency)
	}
	if cfg.Mods.CacheDir != cache.DefaultDir() {
		t.Errorf("cache_dir = %q, want %q", cfg.Mods.CacheDir, cache.DefaultDir())
	}
	if cfg.Mods.MaxSize != 512<<20 {
		t.Errorf("max_size = %d", cfg.Mods.MaxSize)
	}
	if cfg.Timeouts.Download != 5*time.Minute {
		t.Errorf("download timeout = %s", cfg.Timeouts.Download)
	}
	if cfg.Resolve.Attempts != 1 || cfg.Resolve.CacheTTL != 0 {
		t.Errorf("resolve = %+v", cfg.Resolve)
	}
	if len(cfg.Launch.Args) != 4 || cfg.Launch.Args[1] != "{{.Address}}" {
		t.Errorf("launch args = %q", cfg.Launch.Args)
	}
	if !cfg.Policy.HonorManifestRequired {
		t.Error("honor_manifest_required should default to true")
	}
	if !filepath.IsAbs(cfg.Mods.Dir) {
		t.Errorf("mods.dir should be absolute, got %q", cfg.Mods.Dir)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: https://directory.example.com
mods:
  dir: /srv/mods
  concurrency: 8
manifest:
  strict: true
timeouts:
  download: 90s
launch:
  command: prismlauncher
  args: ["-s", "{{.Host}}:{{.Port}}"]
policy:
  required_mods: [fabric-api]
`)

	cfg, layers, err := Load(NewViper(), isolated(t, path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !layers[len(layers)-1].Loaded {
		t.Error("explicit layer should be loaded")
	}

	if cfg.API.BaseURL != "https://directory.example.com" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Mods.Dir != "/srv/mods" || cfg.Mods.Concurrency != 8 {
		t.Errorf("mods = %+v", cfg.Mods)
	}
	if !cfg.Manifest.Strict {
		t.Error("manifest.strict should be true")
	}
	if cfg.Timeouts.Download != 90*time.Second {
		t.Errorf("download timeout = %s", cfg.Timeouts.Download)
	}
	// Unset keys keep their defaults.
	if cfg.Timeouts.Launch != 30*time.Second {
		t.Errorf("launch timeout = %s", cfg.Timeouts.Launch)
	}
	if cfg.Launch.Command != "prismlauncher" || len(cfg.Launch.Args) != 2 {
		t.Errorf("launch = %+v", cfg.Launch)
	}
	if len(cfg.Policy.RequiredMods) != 1 || cfg.Policy.RequiredMods[0] != "fabric-api" {
		t.Errorf("required_mods = %q", cfg.Policy.RequiredMods)
	}
}

func TestLoadLayersExplicitWins(t *testing.T) {
	user := writeConfig(t, "mods:\n  concurrency: 2\n  dir: /user/mods\n")
	explicit := writeConfig(t, "mods:\n  concurrency: 6\n")

	opts := isolated(t, explicit)
	opts.UserConfigPath = user

	cfg, _, err := Load(NewViper(), opts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mods.Concurrency != 6 {
		t.Errorf("concurrency = %d, want 6 from the explicit layer", cfg.Mods.Concurrency)
	}
	if cfg.Mods.Dir != "/user/mods" {
		t.Errorf("dir = %q, want the user layer's value", cfg.Mods.Dir)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(NewViper(), isolated(t, filepath.Join(t.TempDir(), "absent.yaml")))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist: %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "mods: [unclosed\n")
	if _, _, err := Load(NewViper(), isolated(t, path)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUICKJOIN_API_BASE_URL", "")
	t.Setenv("SEALANTERN_API", "http://lantern.local:9000")
	t.Setenv("QUICKJOIN_MODS_CONCURRENCY", "3")

	path := writeConfig(t, "mods:\n  concurrency: 10\n")
	cfg, _, err := Load(NewViper(), isolated(t, path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://lantern.local:9000" {
		t.Errorf("base_url = %q, want SEALANTERN_API value", cfg.API.BaseURL)
	}
	if cfg.Mods.Concurrency != 3 {
		t.Errorf("concurrency = %d, env should beat the file", cfg.Mods.Concurrency)
	}
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("SEALANTERN_API", "http://legacy:1")
	t.Setenv("QUICKJOIN_API_BASE_URL", "http://preferred:2")

	cfg, _, err := Load(NewViper(), isolated(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://preferred:2" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
}

func TestLoadValidationError(t *testing.T) {
	path := writeConfig(t, "mods:\n  concurrency: 0\nresolve:\n  attempts: 0\n")

	_, _, err := Load(NewViper(), isolated(t, path))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if !containsSubstring(ve.Errors, "mods.concurrency") || !containsSubstring(ve.Errors, "resolve.attempts") {
		t.Errorf("unexpected errors: %v", ve.Errors)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.API.BaseURL = DefaultBaseURL
	return cfg
}

func TestValidateDefaultsAreValid(t *testing.T) {
	if errs := Validate(validConfig(t)); len(errs) > 0 {
		t.Errorf("defaults should validate, got: %v", errs)
	}
}

func TestValidateBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "ftp://x", "http://"} {
		cfg := validConfig(t)
		cfg.API.BaseURL = u
		if errs := Validate(cfg); !containsSubstring(errs, "api.base_url") {
			t.Errorf("base_url %q should be rejected, got: %v", u, errs)
		}
	}
}

func TestValidateNegativeDurations(t *testing.T) {
	cfg := validConfig(t)
	cfg.Timeouts.Launch = -time.Second
	cfg.Launch.Grace = -time.Second

	errs := Validate(cfg)
	if !containsSubstring(errs, "timeouts.launch") || !containsSubstring(errs, "launch.grace") {
		t.Errorf("expected duration errors, got: %v", errs)
	}
}

func TestValidateLaunch(t *testing.T) {
	cfg := validConfig(t)
	cfg.Launch.Command = " "
	cfg.Launch.Env = []string{"JAVA_HOME"}

	errs := Validate(cfg)
	if !containsSubstring(errs, "launch.command") {
		t.Errorf("expected command error, got: %v", errs)
	}
	if !containsSubstring(errs, "must be KEY=VALUE") {
		t.Errorf("expected env error, got: %v", errs)
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Log.Level = "chatty"
	if errs := Validate(cfg); !containsSubstring(errs, "log.level") {
		t.Errorf("expected log level error, got: %v", errs)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Errors: []string{"a", "b"}}
	if !strings.Contains(err.Error(), "  - a\n  - b") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
