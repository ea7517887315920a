// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blt-hackathons",
	Short: "Snapshot GitHub contribution stats for hackathon events.",
	Long: `blt-hackathons fetches pull request, review and issue activity for a
set of configured hackathon events and writes one JSON snapshot per
event plus a global summary. It is designed to run hourly; the
frontend only ever reads the precomputed files.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
