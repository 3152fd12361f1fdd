package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/config"
	"github.com/Ananth-NQI/eatcaterly-backend/internal/logging"
)

const version = "1.0.0"

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "eatcaterly",
		Short: "EatCaterly SMS ordering backend",
		Long: `EatCaterly lets customers order today's menu by text message.

Commands:
  serve      Run the HTTP server (SMS and payment webhooks, admin API)
  worker     Consume order events and notify the business owner
  broadcast  Text today's menu to all subscribed customers once
  migrate    Apply database migrations`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadDotEnv()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, !cfg.IsProduction())
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		workerCmd(),
		broadcastCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadDotEnv reads .env files for local development. On Cloud Run the
// environment is set by the platform and no file exists.
func loadDotEnv() {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("environments/.env.development"); err != nil {
			log.Debug().Msg("No .env file found - using environment variables")
		}
	}
}
