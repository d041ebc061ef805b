package cmd

import (
	"bytes"
	"fmt"
	"log"
	"slices"

	"github.com/natefinch/atomic"
	"github.com/psds-microservice/ticket-desk/internal/application"
	"github.com/psds-microservice/ticket-desk/internal/export"
	"github.com/psds-microservice/ticket-desk/internal/service"
	"github.com/spf13/cobra"
)

var (
	exportOut   string
	exportQuery string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ticket table to an .xlsx workbook",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "tickets.xlsx", "output file")
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "only tickets matching this search text")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	seq, err := store.Service.Search(cmd.Context(), exportQuery)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	tickets := slices.Collect(seq)
	service.SortTickets(tickets, service.SortID, true)

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, tickets, cfg.CostTracking); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := atomic.WriteFile(exportOut, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Printf("export: %d tickets written to %s", len(tickets), exportOut)
	return nil
}
