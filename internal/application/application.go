package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/psds-microservice/ticket-desk/internal/config"
	"github.com/psds-microservice/ticket-desk/internal/handler"
	"github.com/psds-microservice/ticket-desk/internal/router"
	"github.com/psds-microservice/ticket-desk/internal/web"
)

// API приложение: HTML-интерфейс и JSON API на одном HTTP-сервере (режим api).
type API struct {
	cfg     *config.Config
	store   *Store
	httpSrv *http.Server
}

// NewAPI создаёт приложение для режима api.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	h := router.New(router.Deps{
		Tickets:    handler.NewTicketHandler(store.Service),
		Web:        handler.NewWebHandler(store.Service, cfg.BrandName, cfg.LogoPath),
		Ready:      handler.Ready(store.Service),
		Templates:  tmpl,
		RequestLog: cfg.LogLevel == "debug",
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:     cfg,
		store:   store,
		httpSrv: httpSrv,
	}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	defer func() {
		if err := a.store.Close(); err != nil {
			log.Printf("store close: %v", err)
		}
	}()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s (store=%s)", a.httpSrv.Addr, a.cfg.StoreDriver)
	log.Printf("  Desk UI:       %s/", base)
	log.Printf("  Swagger UI:    %s%s", base, paths.PathSwagger)
	log.Printf("  Health:        %s%s", base, paths.PathHealth)
	log.Printf("  Ready:         %s%s", base, paths.PathReady)
	log.Printf("  API v1:        %s/api/v1/", base)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
