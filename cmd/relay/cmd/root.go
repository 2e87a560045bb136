package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Real-time message relay",
	Long: `relay accepts chat messages over WebSocket, stores them and broadcasts
each stored message to every connected client in the order it was stored.

Running relay without a subcommand starts the server.

Use "relay [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
