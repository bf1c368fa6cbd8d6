package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/sealantern/quickjoin/internal/cache"
)

const appName = "quickjoin"

// DefaultBaseURL is used when no API base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// EnvPrefix prefixes every environment override, e.g. QUICKJOIN_MODS_DIR.
const EnvPrefix = "QUICKJOIN"

// LegacyAPIEnv is honored for api.base_url after QUICKJOIN_API_BASE_URL.
const LegacyAPIEnv = "SEALANTERN_API"

// NewViper returns a viper instance carrying every default and the
// environment bindings. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("api.base_url", DefaultBaseURL)

	v.SetDefault("mods.dir", filepath.Join(xdg.DataHome, appName, "mods"))
	v.SetDefault("mods.cache_dir", cache.DefaultDir())
	v.SetDefault("mods.concurrency", 4)
	v.SetDefault("mods.max_size", int64(512<<20))

	v.SetDefault("manifest.strict", false)

	v.SetDefault("resolve.cache_ttl", time.Duration(0))
	v.SetDefault("resolve.cache_path", filepath.Join(xdg.StateHome, appName, "resolve.db"))
	v.SetDefault("resolve.attempts", 1)
	v.SetDefault("resolve.retry_delay", time.Second)

	v.SetDefault("timeouts.resolve", 10*time.Second)
	v.SetDefault("timeouts.manifest", 10*time.Second)
	v.SetDefault("timeouts.download", 5*time.Minute)
	v.SetDefault("timeouts.launch", 30*time.Second)

	v.SetDefault("launch.command", "minecraft-launcher")
	v.SetDefault("launch.args", []string{"--server", "{{.Address}}", "--mods", "{{.ModsDir}}"})
	v.SetDefault("launch.env", []string{})
	v.SetDefault("launch.grace", 2*time.Second)

	v.SetDefault("policy.required_mods", []string{})
	v.SetDefault("policy.honor_manifest_required", true)
	v.SetDefault("policy.abort_on_any_failure", false)

	v.SetDefault("log.level", "warn")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", LegacyAPIEnv)

	return v
}
