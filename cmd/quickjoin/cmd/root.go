package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sealantern/quickjoin/pkg/quickjoin"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	configPath string
	apiURL     string
	modsDir    string
	verbose    int
	quiet      bool
	noInherit  bool
)

var rootCmd = &cobra.Command{
	Use:   "quickjoin",
	Short: "Join game servers by ID with mods kept in sync",
	Long: `quickjoin connects you to a game server from a short server ID. It looks
the ID up in the SeaLantern directory, downloads and verifies the mods the
server requires into your mod directory, and starts the game launcher with
the server address.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quickjoin %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default $XDG_CONFIG_HOME/quickjoin/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "SeaLantern API base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&modsDir, "mods-dir", "", "mod directory (overrides mods.dir)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "detailed output, repeat for more")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noInherit, "no-inherit", false, "ignore system and user config files")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	quickjoin.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
