package cmd

import (
	"fmt"

	"github.com/psds-microservice/ticket-desk/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ticket-desk",
	Short: "Support ticket desk: register, resolve, search and delete tickets (CSV or Postgres store)",
	RunE:  runAPI,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(republishCmd)
}

// loadConfig загружает конфиг (config.Load сам читает .env) и проверяет его.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
