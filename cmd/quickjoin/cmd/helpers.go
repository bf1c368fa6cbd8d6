package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sealantern/quickjoin/internal/config"
	"github.com/sealantern/quickjoin/internal/join"
	"github.com/sealantern/quickjoin/internal/logging"
	"github.com/sealantern/quickjoin/internal/modsync"
	"github.com/sealantern/quickjoin/pkg/quickjoin"
)

// Set by setup before any command runs.
var (
	cfg    *config.Config
	layers []config.ConfigLayerInfo
	logger zerolog.Logger
)

// setup loads the configuration and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	v := config.NewViper()
	flags := cmd.Flags()
	for key, flag := range map[string]string{"api.base_url": "api", "mods.dir": "mods-dir"} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	var err error
	cfg, layers, err = config.Load(v, config.DiscoverOptions{
		ExplicitPath: configPath,
		NoInherit:    noInherit || config.EnvNoInherit(),
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger = logging.Setup(logging.Options{
		Level:     cfg.Log.Level,
		Verbosity: verbose,
		Quiet:     quiet,
		LogFile:   logging.DefaultLogFile(),
	})
	return nil
}

// newClient builds a library client from the loaded configuration.
func newClient(observer join.Observer) (*quickjoin.Client, error) {
	return quickjoin.New(quickjoin.Options{
		Config:   cfg,
		Observer: observer,
		Logger:   logger,
	})
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose > 0 && !quiet {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// shortDigest abbreviates a hex digest for tables.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	if d == "" {
		return "-"
	}
	return d
}

// printOutcome reports a mod sync. Failures go to stderr.
func printOutcome(o *modsync.Outcome) {
	for _, m := range o.Mods {
		switch m.Action {
		case modsync.ActionDownloaded, modsync.ActionCached:
			info("  %-10s %s (%s)", m.Action, m.FileName, humanSize(m.Bytes))
		case modsync.ActionSkipped, modsync.ActionDuplicate:
			detail("%-10s %s", m.Action, m.FileName)
		}
	}
	for _, f := range o.Failures {
		errorf("%s (%s): %s: %s", f.ModID, f.FileName, f.Kind, f.Err)
	}
	info("Mods: %d downloaded, %d up to date, %d failed.", o.Downloaded, o.Skipped, len(o.Failures))
}

// stageMessage describes the state a join just entered for progress output.
// Terminal states are reported by the command itself.
func stageMessage(t join.Transition) string {
	if t.To.Terminal() {
		return ""
	}
	switch t.To {
	case join.StateResolving:
		return fmt.Sprintf("Resolving %s...", t.Server)
	case join.StateSyncingMods:
		return fmt.Sprintf("Syncing mods into %s...", cfg.Mods.Dir)
	case join.StateLaunching:
		return "Launching game..."
	}
	return ""
}
