package cmd

import (
	"log/slog"

	"finpilot-server/src/config"
	"finpilot-server/src/db"
	"finpilot-server/src/logging"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema and change triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel)

		pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.Migrate(cmd.Context(), pool); err != nil {
			return err
		}
		slog.Info("Schema applied")
		return nil
	},
}
