package application

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/psds-microservice/ticket-desk/internal/config"
	"github.com/psds-microservice/ticket-desk/internal/model"
	"github.com/psds-microservice/ticket-desk/internal/service"
)

func TestOpenStoreCSV(t *testing.T) {
	cfg := &config.Config{
		StoreDriver:  config.DriverCSV,
		StorePath:    filepath.Join(t.TempDir(), "tickets.csv"),
		AdminSecret:  "admin123",
		CostTracking: true,
	}
	store, err := OpenStore(cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if !store.Service.DeleteEnabled() {
		t.Error("ADMIN_SECRET should enable deletion")
	}

	ctx := context.Background()
	tk, err := store.Service.Create(ctx, service.CreateInput{
		Customer: "Ana", Category: model.CategorySoftware, Priority: model.PriorityLow, Description: "a",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Service.Delete(ctx, tk.ID, "admin123"); err != nil {
		t.Errorf("Delete with the configured secret: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
