package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/psds-microservice/ticket-desk/internal/application"
	"github.com/spf13/cobra"
)

var republishCmd = &cobra.Command{
	Use:   "republish",
	Short: "Replay every ticket to Kafka as ticket.updated (KAFKA_BROKERS required)",
	RunE:  runRepublish,
}

func runRepublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaTopicTicket == "" {
		log.Println("republish: KAFKA_BROKERS not set, nothing to do")
		return nil
	}
	store, err := application.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("republish: close: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	n, err := store.Service.Republish(ctx, func(done, total int) {
		if done%50 == 0 || done == total {
			log.Printf("republish: sent %d/%d events to Kafka", done, total)
		}
	})
	if err != nil {
		return fmt.Errorf("republish: %w", err)
	}
	log.Printf("republish: done, sent %d events to topic %s", n, cfg.KafkaTopicTicket)
	return nil
}
