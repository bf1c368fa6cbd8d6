package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modsCmd = &cobra.Command{
	Use:   "mods",
	Short: "Inspect and synchronize the mod directory",
}

var modsListCmd = &cobra.Command{
	Use:   "list <server-id>",
	Short: "List the mods a server requires",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close()

		entries, err := client.Manifest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			info("Server %s requires no mods.", args[0])
			return nil
		}

		fmt.Printf("%-20s %-24s %-30s %-8s %s\n", "MOD", "NAME", "FILE", "REQUIRED", "SHA256")
		for _, e := range entries {
			required := "no"
			if e.Required {
				required = "yes"
			}
			fmt.Printf("%-20s %-24s %-30s %-8s %s\n", e.ModID, e.Name(), e.FileName, required, shortDigest(e.ExpectedDigest()))
		}
		return nil
	},
}

var modsStatusCmd = &cobra.Command{
	Use:   "status <server-id>",
	Short: "Show what a sync would do without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close()

		plan, err := client.Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(plan) == 0 {
			info("Server %s requires no mods.", args[0])
			return nil
		}

		pending := 0
		fmt.Printf("%-20s %-30s %-10s %s\n", "MOD", "FILE", "STATE", "NOTE")
		for _, pe := range plan {
			note := ""
			switch {
			case pe.Err != nil:
				note = pe.Err.Error()
			case pe.NeedsTransfer() && pe.Cached:
				note = "in cache"
			case pe.DuplicateOf >= 0:
				note = "same file as " + plan[pe.DuplicateOf].Entry.ModID
			}
			if pe.NeedsTransfer() {
				pending++
			}
			fmt.Printf("%-20s %-30s %-10s %s\n", pe.Entry.ModID, pe.Entry.FileName, pe.State, note)
		}
		info("\n%d of %d mods need to be installed into %s.", pending, len(plan), client.ModsDir())
		return nil
	},
}

var modsSyncCmd = &cobra.Command{
	Use:   "sync <server-id>",
	Short: "Download a server's mods without launching the game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close()

		info("Syncing mods into %s...", client.ModsDir())
		outcome, err := client.SyncMods(cmd.Context(), args[0])
		if outcome != nil {
			printOutcome(outcome)
		}
		if err != nil {
			return err
		}
		if !outcome.OK() {
			return fmt.Errorf("%d mod(s) failed to sync", len(outcome.Failures))
		}
		return nil
	},
}

var modsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify installed mods against their recorded digests",
	Long: `Hashes every mod recorded as installed and reports files that were
modified or removed since quickjoin wrote them. Exits non-zero on drift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Check(cmd.Context())
		if err != nil {
			return err
		}

		for _, name := range result.Valid {
			detail("ok       %s", name)
		}
		for _, d := range result.Drifted {
			errorf("drifted: %s (expected %s, found %s)", d.FileName, shortDigest(d.Expected), shortDigest(d.Actual))
		}
		for _, name := range result.Missing {
			errorf("missing: %s", name)
		}

		if !result.Clean {
			return fmt.Errorf("%d mod(s) drifted, %d missing", len(result.Drifted), len(result.Missing))
		}
		info("All %d installed mods verified.", len(result.Valid))
		return nil
	},
}

func init() {
	modsCmd.AddCommand(modsListCmd, modsStatusCmd, modsSyncCmd, modsCheckCmd)
	rootCmd.AddCommand(modsCmd)
}
