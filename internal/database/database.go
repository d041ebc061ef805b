package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/psds-microservice/ticket-desk/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open подключается к Postgres через GORM.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// TicketTable хранит весь набор тикетов в таблице Postgres с тем же контрактом, что и CSV:
// Load читает все строки по id, Save заменяет содержимое таблицы в одной транзакции.
type TicketTable struct {
	db *gorm.DB
}

func NewTicketTable(db *gorm.DB) *TicketTable {
	return &TicketTable{db: db}
}

func (t *TicketTable) Load(ctx context.Context) ([]model.Ticket, error) {
	items := []model.Ticket{}
	if err := t.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return items, nil
}

func (t *TicketTable) Save(ctx context.Context, tickets []model.Ticket) error {
	rows := slices.Clone(tickets)
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Ticket{}).Error; err != nil {
			return fmt.Errorf("clear tickets: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("insert tickets: %w", err)
		}
		return nil
	})
}
