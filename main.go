package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/backoffice/config"
	"github.com/yeremiapane/backoffice/utils"
)

var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Back-office API with realtime order and chat notifications",
	Long: `backoffice serves the orders, payments, ledger, attendance, stats and
chat endpoints of the back office, plus the /realtime event stream.

Without a subcommand it runs the HTTP server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}
		cfg = config.Load()
		return utils.InitLoggerWithOptions(utils.LogOptions{
			Level:     cfg.LogLevel,
			Dir:       cfg.LogDir,
			MaxAgeDay: cfg.LogMaxAgeDays,
		})
	},
	RunE: runServe,
}

// cfg is loaded once by the root pre-run hook.
var cfg *config.Config

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", config.AppName, config.AppVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
