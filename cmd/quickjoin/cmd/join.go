package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sealantern/quickjoin/internal/join"
)

var joinCmd = &cobra.Command{
	Use:   "join <server-id>",
	Short: "Resolve a server, sync its mods and launch the game",
	Long: `Looks the server ID up in the directory, brings the mod directory in line
with the server's manifest and starts the configured launcher with the
server address. Individual mod failures are reported but only stop the join
when the policy marks the mod as required.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(func(t join.Transition) {
			if msg := stageMessage(t); msg != "" {
				info("%s", msg)
			}
		})
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Join(cmd.Context(), args[0])
		if result == nil {
			return err
		}
		if result.Address.Host != "" {
			detail("address: %s", result.Address)
		}
		if result.Outcome != nil {
			printOutcome(result.Outcome)
		}
		if !result.Succeeded() {
			return result.Err
		}

		info("Launched %s at %s.", result.Server, result.Address)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
