package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/murshid-ai/murshid/db"
	"github.com/murshid-ai/murshid/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return db.Migrate(cfg.ConnString(), newLogger())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
