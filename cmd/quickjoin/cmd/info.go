package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sealantern/quickjoin/internal/cache"
	"github.com/sealantern/quickjoin/internal/logging"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show quickjoin configuration and storage locations",
	Long: `Displays the quickjoin version, the configuration chain, the API base URL,
the mod directory, the mod cache with its size and the launcher command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("quickjoin %s\n", version)

		fmt.Println("  config chain:")
		for _, layer := range layers {
			status := "not found"
			if layer.Loaded {
				status = "loaded"
			}
			fmt.Printf("    %-10s %s (%s)\n", string(layer.Level)+":", layer.Path, status)
		}

		fmt.Printf("  api:           %s\n", cfg.API.BaseURL)
		fmt.Printf("  mods dir:      %s\n", cfg.Mods.Dir)

		if cfg.Mods.CacheDir == "" {
			fmt.Printf("  cache dir:     (disabled)\n")
		} else {
			c, err := cache.New(cfg.Mods.CacheDir)
			if err != nil {
				return fmt.Errorf("opening mod cache: %w", err)
			}
			size, _ := c.Size()
			fmt.Printf("  cache dir:     %s\n", c.Path())
			fmt.Printf("  cache size:    %s\n", humanSize(size))
		}

		if cfg.Resolve.CacheTTL > 0 {
			fmt.Printf("  resolve cache: %s (ttl %s)\n", cfg.Resolve.CachePath, cfg.Resolve.CacheTTL)
		}
		fmt.Printf("  launcher:      %s\n", cfg.Launch.Command)
		fmt.Printf("  log file:      %s\n", logging.DefaultLogFile())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
