// Package cmd contains the murshid command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/murshid-ai/murshid/internal/log"
)

var (
	logJSON bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "murshid",
	Short: "Murshid - AI tutoring backend",
	Long: `Murshid is the backend for an AI tutoring platform. It serves
student and teacher chat sessions with per-session knowledge bases,
document ingestion, teaching material generation, and a realtime
voice relay.

Run "murshid serve" to start the HTTP server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"emit logs as JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}
