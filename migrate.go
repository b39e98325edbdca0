package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/database"
	"github.com/yeremiapane/backoffice/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and install the event triggers",
	Long: `Create the tables this service needs when they do not exist.

With --triggers (MySQL only) inserts and updates on os also append to the
event table, for deployments that run the table event bus next to other
writers of os.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("triggers", false, "install the os triggers that feed the event table")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := config.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db, cfg.EventBusTable); err != nil {
		return err
	}

	if withTriggers, _ := cmd.Flags().GetBool("triggers"); withTriggers {
		if err := database.InstallTriggers(db, cfg.EventBusTable); err != nil {
			return err
		}
	}

	utils.InfoLogger.Println("migration completed")
	return nil
}
