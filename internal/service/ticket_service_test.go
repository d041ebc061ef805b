package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/ticket-desk/internal/auth"
	"github.com/psds-microservice/ticket-desk/internal/errs"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "s3cret"

type recordedEvent struct {
	event   string
	payload map[string]interface{}
}

type fakeProducer struct {
	mu     sync.Mutex
	events []recordedEvent
	sent   chan struct{}
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{sent: make(chan struct{}, 16)}
}

func (p *fakeProducer) ProduceTicketEvent(_ context.Context, event string, payload map[string]interface{}) {
	p.mu.Lock()
	p.events = append(p.events, recordedEvent{event: event, payload: payload})
	p.mu.Unlock()
	p.sent <- struct{}{}
}

func (p *fakeProducer) wait(t *testing.T, n int) []recordedEvent {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

type fixture struct {
	svc      *TicketService
	file     *storage.CSVFile
	producer *fakeProducer
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	hash, err := auth.HashSecret(testSecret, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	gate, err := auth.NewGate(hash, nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC) }
	}
	opts.DeleteEnabled = true
	file := storage.NewCSVFile(filepath.Join(t.TempDir(), "tickets.csv"))
	producer := newFakeProducer()
	return &fixture{
		svc:      NewTicketService(file, gate, producer, opts),
		file:     file,
		producer: producer,
	}
}

func (f *fixture) create(t *testing.T, customer string, priority model.Priority, description string) *model.Ticket {
	t.Helper()
	tk, err := f.svc.Create(context.Background(), CreateInput{
		Customer:    customer,
		Category:    model.CategorySoftware,
		Priority:    priority,
		Description: description,
	})
	if err != nil {
		t.Fatalf("Create(%q): %v", customer, err)
	}
	return tk
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: true})

	for i, name := range []string{"Ana", "Bob", "Eva"} {
		tk := f.create(t, name, model.PriorityLow, "printer jam")
		if tk.ID != uint64(i+1) {
			t.Errorf("ticket for %s got id %d, want %d", name, tk.ID, i+1)
		}
		if tk.Status != model.TicketStatusOpen || tk.Solution != model.SolutionPending || tk.Cost != 0 {
			t.Errorf("new ticket not open/pending: %+v", tk)
		}
		if tk.CreatedAt != "05/03/2024 14:07" {
			t.Errorf("CreatedAt = %q", tk.CreatedAt)
		}
	}

	tickets, err := f.file.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 3 {
		t.Fatalf("store has %d tickets, want 3", len(tickets))
	}
	first := tickets[0]
	if first.ID != 1 || first.Status != model.TicketStatusOpen || first.Solution != model.SolutionPending {
		t.Errorf("reloaded first ticket = %+v, want id 1, Open, Pending", first)
	}
	if first.Customer != "Ana" || first.Category != model.CategorySoftware || first.Priority != model.PriorityLow {
		t.Errorf("reloaded first ticket fields = %+v", first)
	}
}

func TestCreateContinuesAfterLargestID(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	seed := []model.Ticket{
		{ID: 1, Customer: "a", Status: model.TicketStatusOpen},
		{ID: 5, Customer: "b", Status: model.TicketStatusResolved},
	}
	if err := f.file.Save(context.Background(), seed); err != nil {
		t.Fatal(err)
	}
	if tk := f.create(t, "Carl", model.PriorityMedium, "x"); tk.ID != 6 {
		t.Errorf("id = %d, want 6", tk.ID)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{Categories: []model.Category{model.CategoryHardware}})
	cases := map[string]CreateInput{
		"blank customer":    {Customer: "  ", Category: model.CategoryHardware, Priority: model.PriorityLow, Description: "d"},
		"blank description": {Customer: "Ana", Category: model.CategoryHardware, Priority: model.PriorityLow, Description: ""},
		"unknown priority":  {Customer: "Ana", Category: model.CategoryHardware, Priority: "Critical", Description: "d"},
		"category not enabled": {
			Customer: "Ana", Category: model.CategorySoftware, Priority: model.PriorityLow, Description: "d",
		},
	}
	for name, in := range cases {
		if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
	if _, err := os.Stat(f.file.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected creates must not write the store, stat err = %v", err)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: true})
	ctx := context.Background()
	tk := f.create(t, "Ana", model.PriorityHigh, "no network")

	got, err := f.svc.Resolve(ctx, tk.ID, "replaced cable", 12.5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != model.TicketStatusResolved || got.Solution != "replaced cable" || got.Cost != 12.5 {
		t.Errorf("resolved ticket = %+v", got)
	}

	stored, err := f.svc.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.TicketStatusResolved {
		t.Errorf("stored status = %q", stored.Status)
	}

	// A resolved ticket is no longer resolvable.
	if _, err := f.svc.Resolve(ctx, tk.ID, "again", 1); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second Resolve: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, 99, "x", 0); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Resolve unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: true})
	ctx := context.Background()
	tk := f.create(t, "Ana", model.PriorityLow, "slow pc")

	if _, err := f.svc.Resolve(ctx, tk.ID, "   ", 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("blank solution: expected ErrValidation, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, tk.ID, "fixed", -1); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("negative cost: expected ErrValidation, got %v", err)
	}

	stored, err := f.svc.GetByID(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsOpen() || stored.Solution != model.SolutionPending {
		t.Errorf("rejected resolve changed the ticket: %+v", stored)
	}
}

func TestResolveRoundsCostToCents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: true})
	ctx := context.Background()
	cases := []struct {
		in, want float64
	}{
		{19.999, 20},
		{4.501, 4.5},
		{12.25, 12.25},
	}
	for _, c := range cases {
		tk := f.create(t, "Ana", model.PriorityLow, "slow pc")
		got, err := f.svc.Resolve(ctx, tk.ID, "cleaned", c.in)
		if err != nil {
			t.Fatalf("Resolve(%v): %v", c.in, err)
		}
		if got.Cost != c.want {
			t.Errorf("Resolve(%v) cost = %v, want %v", c.in, got.Cost, c.want)
		}
		stored, err := f.svc.GetByID(ctx, tk.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Cost != c.want {
			t.Errorf("stored cost = %v, want %v", stored.Cost, c.want)
		}
	}
}

func TestResolveWithoutCostTracking(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: false})
	tk := f.create(t, "Ana", model.PriorityLow, "slow pc")

	got, err := f.svc.Resolve(context.Background(), tk.ID, "cleaned", 99)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Cost != 0 {
		t.Errorf("cost = %v, want 0 when cost tracking is off", got.Cost)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	a := f.create(t, "Ana", model.PriorityLow, "a")
	b := f.create(t, "Bob", model.PriorityLow, "b")

	if err := f.svc.Delete(ctx, a.ID, testSecret); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	tickets, err := f.svc.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tickets) != 1 || tickets[0].ID != b.ID {
		t.Errorf("after delete store = %+v", tickets)
	}
	if err := f.svc.Delete(ctx, a.ID, testSecret); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("deleting twice: expected ErrNotFound, got %v", err)
	}

	// Ids are never reused while a larger id exists.
	if c := f.create(t, "Carl", model.PriorityLow, "c"); c.ID != 3 {
		t.Errorf("next id = %d, want 3", c.ID)
	}
}

func TestDeleteWrongSecretLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	ctx := context.Background()
	tk := f.create(t, "Ana", model.PriorityLow, "a")

	before, err := os.ReadFile(f.file.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Delete(ctx, tk.ID, "wrong"); !errors.Is(err, errs.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	after, err := os.ReadFile(f.file.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("store changed after a rejected delete")
	}
}

func TestDeleteDisabledWithoutSecret(t *testing.T) {
	t.Parallel()
	gate, err := auth.NewGate("", nil)
	if err != nil {
		t.Fatal(err)
	}
	file := storage.NewCSVFile(filepath.Join(t.TempDir(), "tickets.csv"))
	svc := NewTicketService(file, gate, nil, Options{})
	if svc.DeleteEnabled() {
		t.Error("DeleteEnabled should be false")
	}
	if err := svc.Delete(context.Background(), 1, ""); !errors.Is(err, errs.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{CostTracking: true})
	ctx := context.Background()

	tk := f.create(t, "Ana", model.PriorityLow, "a")
	f.producer.wait(t, 1)
	if _, err := f.svc.Resolve(ctx, tk.ID, "done", 5); err != nil {
		t.Fatal(err)
	}
	f.producer.wait(t, 1)
	if err := f.svc.Delete(ctx, tk.ID, testSecret); err != nil {
		t.Fatal(err)
	}
	events := f.producer.wait(t, 1)

	var names []string
	for _, e := range events {
		names = append(names, e.event)
		if e.payload["ticket_id"] != tk.ID {
			t.Errorf("%s payload ticket_id = %v", e.event, e.payload["ticket_id"])
		}
	}
	want := []string{"ticket.created", "ticket.resolved", "ticket.deleted"}
	if !slices.Equal(names, want) {
		t.Errorf("events = %v, want %v", names, want)
	}
}

// closingProducer drops writes after Close, as kafka.Producer does once its writer is closed.
type closingProducer struct {
	mu      sync.Mutex
	closed  bool
	written []string
}

func (p *closingProducer) ProduceTicketEvent(_ context.Context, event string, _ map[string]interface{}) {
	time.Sleep(20 * time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.written = append(p.written, event)
	}
}

func (p *closingProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func TestWaitFlushesEventsBeforeProducerClose(t *testing.T) {
	t.Parallel()
	hash, err := auth.HashSecret(testSecret, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	gate, err := auth.NewGate(hash, nil)
	if err != nil {
		t.Fatal(err)
	}
	producer := &closingProducer{}
	file := storage.NewCSVFile(filepath.Join(t.TempDir(), "tickets.csv"))
	svc := NewTicketService(file, gate, producer, Options{CostTracking: true})
	ctx := context.Background()

	tk, err := svc.Create(ctx, CreateInput{
		Customer: "Ana", Category: model.CategorySoftware, Priority: model.PriorityLow, Description: "a",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Resolve(ctx, tk.ID, "done", 3); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, tk.ID, testSecret); err != nil {
		t.Fatal(err)
	}

	svc.Wait()
	producer.Close()

	producer.mu.Lock()
	defer producer.mu.Unlock()
	if len(producer.written) != 3 {
		t.Errorf("events written before close = %v, want all 3", producer.written)
	}
}

func TestRepublish(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Options{})
	f.create(t, "Ana", model.PriorityLow, "a")
	f.create(t, "Bob", model.PriorityLow, "b")
	f.producer.wait(t, 2)

	var calls int
	n, err := f.svc.Republish(context.Background(), func(done, total int) {
		calls++
		if total != 2 {
			t.Errorf("total = %d, want 2", total)
		}
	})
	if err != nil {
		t.Fatalf("Republish: %v", err)
	}
	if n != 2 || calls != 2 {
		t.Errorf("Republish sent %d events with %d progress calls", n, calls)
	}
	events := f.producer.wait(t, 2)
	for _, e := range events[2:] {
		if e.event != "ticket.updated" {
			t.Errorf("republished event = %q", e.event)
		}
	}
}

func TestNextID(t *testing.T) {
	t.Parallel()
	if got := NextID(nil); got != 1 {
		t.Errorf("NextID(empty) = %d, want 1", got)
	}
	if got := NextID([]model.Ticket{{ID: 7}, {ID: 2}}); got != 8 {
		t.Errorf("NextID = %d, want 8", got)
	}
}
