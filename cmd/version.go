package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information, injected at build time via ldflags.
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "murshid %s\nbuild time: %s\ncommit: %s\n",
			Version, BuildTime, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
