package application

import (
	"errors"
	"fmt"
	"log"

	"github.com/psds-microservice/ticket-desk/internal/auth"
	"github.com/psds-microservice/ticket-desk/internal/config"
	"github.com/psds-microservice/ticket-desk/internal/database"
	"github.com/psds-microservice/ticket-desk/internal/kafka"
	"github.com/psds-microservice/ticket-desk/internal/service"
	"github.com/psds-microservice/ticket-desk/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store собирает хранилище тикетов по конфигу: бэкенд, гейт удаления и продюсер событий.
// Используется и HTTP-режимом, и CLI-командами.
type Store struct {
	Service  *service.TicketService
	Backend  service.TicketBackend
	Producer *kafka.Producer

	redis   *redis.Client
	closeDB func() error
}

// OpenStore открывает бэкенд. Для postgres предварительно применяются миграции.
func OpenStore(cfg *config.Config) (*Store, error) {
	st := &Store{}

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		st.closeDB = sqlDB.Close
		st.Backend = database.NewTicketTable(db)
	default:
		st.Backend = storage.NewCSVFile(cfg.StorePath)
	}

	hash := cfg.AdminSecretHash
	if hash == "" && cfg.AdminSecret != "" {
		h, err := auth.HashSecret(cfg.AdminSecret, auth.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin secret: %w", err)
		}
		hash = h
	}
	st.redis = cfg.NewRedisClient()
	if cfg.Redis.Addr != "" && st.redis == nil {
		log.Printf("redis: %s unreachable, admin attempt limiting disabled", cfg.Redis.Addr)
	}
	gate, err := auth.NewGate(hash, auth.NewRedisLimiter(st.redis, cfg.AdminMaxAttempts, cfg.AdminLockout))
	if err != nil {
		return nil, err
	}
	if !gate.Enabled() {
		log.Println("tickets: no admin secret configured, deletion disabled")
	}

	st.Producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	st.Service = service.NewTicketService(st.Backend, gate, st.Producer, service.Options{
		Categories:    cfg.Categories,
		CostTracking:  cfg.CostTracking,
		DeleteEnabled: gate.Enabled(),
	})
	return st, nil
}

// Close дожидается отправки событий и закрывает продюсер, Redis и БД.
func (s *Store) Close() error {
	s.Service.Wait()
	var errList []error
	if err := s.Producer.Close(); err != nil {
		errList = append(errList, fmt.Errorf("kafka: %w", err))
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errList = append(errList, fmt.Errorf("redis: %w", err))
		}
	}
	if s.closeDB != nil {
		if err := s.closeDB(); err != nil {
			errList = append(errList, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errList...)
}
