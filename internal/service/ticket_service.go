package service

import (
	"context"
	"fmt"
	"iter"
	"log"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/psds-microservice/ticket-desk/internal/errs"
	"github.com/psds-microservice/ticket-desk/internal/kafka"
	"github.com/psds-microservice/ticket-desk/internal/model"
)

// TicketBackend: хранилище всего набора тикетов: полная загрузка и полная перезапись.
type TicketBackend interface {
	Load(ctx context.Context) ([]model.Ticket, error)
	Save(ctx context.Context, tickets []model.Ticket) error
}

// SecretChecker проверяет секрет администратора перед удалением.
type SecretChecker interface {
	Check(ctx context.Context, secret string) error
}

// TicketServicer: интерфейс для хендлеров (Dependency Inversion).
type TicketServicer interface {
	Load(ctx context.Context) ([]model.Ticket, error)
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	Create(ctx context.Context, in CreateInput) (*model.Ticket, error)
	Resolve(ctx context.Context, id uint64, solution string, cost float64) (*model.Ticket, error)
	Delete(ctx context.Context, id uint64, secret string) error
	Search(ctx context.Context, query string) (iter.Seq[model.Ticket], error)
	Categories() []model.Category
	CostTracking() bool
	DeleteEnabled() bool
}

type CreateInput struct {
	Customer    string
	Category    model.Category
	Priority    model.Priority
	Description string
}

type Options struct {
	// Categories сужает набор категорий; пусто: model.DefaultCategories.
	Categories []model.Category
	// CostTracking включает стоимость при закрытии; выключено: стоимость 0.
	CostTracking bool
	// DeleteEnabled: задан ли секрет удаления (только для отображения).
	DeleteEnabled bool
	Now           func() time.Time
}

// TicketService: хранилище тикетов. Каждая мутация перечитывает весь набор,
// применяет изменение и записывает набор целиком. Мьютекс сериализует
// вызовы только внутри процесса.
type TicketService struct {
	mu       sync.Mutex
	pending  sync.WaitGroup
	backend  TicketBackend
	gate     SecretChecker
	producer kafka.TicketEventProducer

	categories    []model.Category
	costTracking  bool
	deleteEnabled bool
	now           func() time.Time
}

func NewTicketService(backend TicketBackend, gate SecretChecker, producer kafka.TicketEventProducer, opts Options) *TicketService {
	cats := opts.Categories
	if len(cats) == 0 {
		cats = model.DefaultCategories
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		backend:       backend,
		gate:          gate,
		producer:      producer,
		categories:    slices.Clone(cats),
		costTracking:  opts.CostTracking,
		deleteEnabled: opts.DeleteEnabled,
		now:           now,
	}
}

func (s *TicketService) Categories() []model.Category { return slices.Clone(s.categories) }

func (s *TicketService) CostTracking() bool { return s.costTracking }

func (s *TicketService) DeleteEnabled() bool { return s.deleteEnabled && s.gate != nil }

// Load возвращает все тикеты в порядке бэкенда.
func (s *TicketService) Load(ctx context.Context) ([]model.Ticket, error) {
	return s.backend.Load(ctx)
}

func (s *TicketService) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(tickets, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: id %d", errs.ErrNotFound, id)
	}
	t := tickets[i]
	return &t, nil
}

func (s *TicketService) Create(ctx context.Context, in CreateInput) (*model.Ticket, error) {
	in.Customer = strings.TrimSpace(in.Customer)
	in.Description = strings.TrimSpace(in.Description)
	if in.Customer == "" {
		return nil, fmt.Errorf("%w: customer is required", errs.ErrValidation)
	}
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description is required", errs.ErrValidation)
	}
	if !slices.Contains(s.categories, in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", errs.ErrValidation, in.Category)
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", errs.ErrValidation, in.Priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	t := model.Ticket{
		ID:          NextID(tickets),
		CreatedAt:   s.now().Format(model.CreatedAtLayout),
		Customer:    in.Customer,
		Category:    in.Category,
		Priority:    in.Priority,
		Description: in.Description,
		Status:      model.TicketStatusOpen,
		Solution:    model.SolutionPending,
	}
	if err := s.backend.Save(ctx, append(tickets, t)); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	log.Printf("tickets: created #%d for %q", t.ID, t.Customer)
	s.publish(kafka.EventTicketCreated, &t)
	return &t, nil
}

// Resolve закрывает открытый тикет. Стоимость округляется до центов.
// Повторное закрытие даёт errs.ErrNotFound: решённых тикетов нет среди открытых.
func (s *TicketService) Resolve(ctx context.Context, id uint64, solution string, cost float64) (*model.Ticket, error) {
	if strings.TrimSpace(solution) == "" {
		return nil, fmt.Errorf("%w: solution is required", errs.ErrValidation)
	}
	if !s.costTracking {
		cost = 0
	}
	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, fmt.Errorf("%w: cost must be a non-negative number", errs.ErrValidation)
	}
	cost = RoundCents(cost)

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	i := indexOf(tickets, id)
	if i < 0 || !tickets[i].IsOpen() {
		return nil, fmt.Errorf("%w: no open ticket with id %d", errs.ErrNotFound, id)
	}
	tickets[i].Status = model.TicketStatusResolved
	tickets[i].Solution = solution
	tickets[i].Cost = cost
	if err := s.backend.Save(ctx, tickets); err != nil {
		return nil, fmt.Errorf("save: %w", err)
	}
	t := tickets[i]
	log.Printf("tickets: resolved #%d (cost %.2f)", t.ID, t.Cost)
	s.publish(kafka.EventTicketResolved, &t)
	return &t, nil
}

// Delete удаляет тикет после проверки секрета администратора.
// При неверном секрете бэкенд не читается и не пишется.
func (s *TicketService) Delete(ctx context.Context, id uint64, secret string) error {
	if s.gate == nil {
		return fmt.Errorf("%w: deletion is disabled", errs.ErrAuth)
	}
	if err := s.gate.Check(ctx, secret); err != nil {
		log.Printf("tickets: delete #%d rejected: %v", id, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	i := indexOf(tickets, id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", errs.ErrNotFound, id)
	}
	removed := tickets[i]
	if err := s.backend.Save(ctx, slices.Delete(tickets, i, i+1)); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Printf("tickets: deleted #%d", id)
	s.publish(kafka.EventTicketDeleted, &removed)
	return nil
}

// Republish повторно отправляет все тикеты событием ticket.updated.
func (s *TicketService) Republish(ctx context.Context, progress func(done, total int)) (int, error) {
	tickets, err := s.backend.Load(ctx)
	if err != nil {
		return 0, err
	}
	if s.producer == nil {
		return 0, nil
	}
	for i := range tickets {
		s.producer.ProduceTicketEvent(ctx, kafka.EventTicketUpdated, EventPayload(&tickets[i]))
		if progress != nil {
			progress(i+1, len(tickets))
		}
	}
	return len(tickets), nil
}

// publish отправляет событие в фоне со своим таймаутом, независимо от отмены запроса.
// Wait дожидается всех таких отправок.
func (s *TicketService) publish(event string, t *model.Ticket) {
	if s.producer == nil {
		return
	}
	payload := EventPayload(t)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.producer.ProduceTicketEvent(ctx, event, payload)
	}()
}

// Wait блокируется, пока не завершатся фоновые отправки событий.
// Вызывается перед закрытием продюсера.
func (s *TicketService) Wait() {
	s.pending.Wait()
}

func EventPayload(t *model.Ticket) map[string]interface{} {
	if t == nil {
		return nil
	}
	return map[string]interface{}{
		"ticket_id":  t.ID,
		"created_at": t.CreatedAt,
		"customer":   t.Customer,
		"category":   string(t.Category),
		"priority":   string(t.Priority),
		"status":     string(t.Status),
		"solution":   t.Solution,
		"cost":       t.Cost,
	}
}

// NextID: максимальный id + 1, для пустого набора 1.
func NextID(tickets []model.Ticket) uint64 {
	var max uint64
	for i := range tickets {
		if tickets[i].ID > max {
			max = tickets[i].ID
		}
	}
	return max + 1
}

// RoundCents округляет стоимость до центов, как её хранит колонка NUMERIC(12,2).
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func indexOf(tickets []model.Ticket, id uint64) int {
	return slices.IndexFunc(tickets, func(t model.Ticket) bool { return t.ID == id })
}
