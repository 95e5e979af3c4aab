package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/harvester/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the jobs schema to the configured database",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	version, err := store.Migrate(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.Database.Driver, err)
	}
	logger.Info("schema up to date", "driver", cfg.Database.Driver, "version", version)
	return nil
}
