package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <server-id>",
	Short: "Look up a server's address and status",
	Long: `Asks the directory for the server behind an ID and prints its address,
name, status and player count. Nothing is downloaded or launched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		defer client.Close()

		srv, err := client.Lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if quiet {
			fmt.Println(srv.Address)
			return nil
		}

		name := srv.Name
		if name == "" {
			name = srv.ID.String()
		}
		fmt.Printf("%s\n", name)
		fmt.Printf("  address:  %s\n", srv.Address)
		fmt.Printf("  status:   %s\n", srv.Status.Label())
		if srv.Players != nil {
			if srv.MaxPlayers != nil {
				fmt.Printf("  players:  %d/%d\n", *srv.Players, *srv.MaxPlayers)
			} else {
				fmt.Printf("  players:  %d\n", *srv.Players)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
