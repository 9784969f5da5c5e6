package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "parleyd",
	Short: "Live conversation copilot server",
	Long: `parleyd hosts live copilot sessions over WebSocket.

Clients stream audio chunks and emotion telemetry for an ongoing
conversation; the server transcribes speech, analyzes counterpart
responses, generates tactical suggestions from emotional trends, and
archives a full record when the session ends.

Example:
  parleyd serve --config config.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("parleyd %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
