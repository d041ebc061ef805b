package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/psds-microservice/ticket-desk/internal/config"
	"github.com/psds-microservice/ticket-desk/internal/database"
	"github.com/psds-microservice/ticket-desk/internal/storage"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the store to the current schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations (postgres) or rewrite the file with the canonical header (csv)",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverPostgres {
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Println("migrate up: ok")
		return nil
	}

	// CSV: перечитываем файл (в т.ч. legacy-заголовки) и сохраняем в каноническом виде.
	ctx := context.Background()
	file := storage.NewCSVFile(cfg.StorePath)
	tickets, err := file.Load(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := file.Save(ctx, tickets); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("migrate up: %s rewritten with %d tickets", file.Path(), len(tickets))
	return nil
}
