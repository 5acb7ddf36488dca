package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/alex-user-go/soltour/internal/ajax"
	"github.com/alex-user-go/soltour/internal/config"
	"github.com/alex-user-go/soltour/internal/details"
	"github.com/alex-user-go/soltour/internal/enrich"
	"github.com/alex-user-go/soltour/internal/handler"
	"github.com/alex-user-go/soltour/internal/handoff"
	"github.com/alex-user-go/soltour/internal/middleware"
	"github.com/alex-user-go/soltour/internal/obs"
	"github.com/alex-user-go/soltour/internal/ratelimit"
	"github.com/alex-user-go/soltour/internal/storage"
	"github.com/alex-user-go/soltour/internal/view"
)

// Run initializes and runs the application.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Initialize metrics
	metrics := obs.NewMetrics(logger)

	// Initialize tab storage
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	backend, err := storage.Open(openCtx, cfg.Storage.Driver, cfg.Storage.DSN)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	gateway := storage.NewGateway(backend, cfg.Storage.IdleTTL, logger)
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}()
	logger.Info("tab storage ready", "driver", cfg.Storage.Driver, "idle_ttl", cfg.Storage.IdleTTL.String())

	// Initialize admin-ajax client. Without an endpoint enrichment falls back to
	// placeholders and confirmations report the quote as unavailable.
	var (
		fetcher  enrich.Fetcher
		selector handoff.Selector
	)
	if cfg.Ajax.URL != "" {
		client := ajax.NewClient(cfg.Ajax.URL, cfg.Ajax.Nonce, cfg.Ajax.Timeout)
		fetcher, selector = client, client
	} else {
		logger.Warn("ajax.url not set, quote selection disabled")
	}

	enricher := enrich.New(fetcher, cfg.Enrich.CacheTTL, cfg.Ajax.Timeout, metrics, logger)
	defer enricher.Close()

	detailsService := details.NewService(gateway, view.NewBuilder(cfg.View.PriceDecimals), enricher, metrics, logger)
	coordinator := handoff.NewCoordinator(gateway, handoff.NewBridge(selector), metrics, logger)

	// Initialize rate limiter for package confirmations
	limiter := ratelimit.New(cfg.RateLimit.ConfirmRate, cfg.RateLimit.Window)
	defer limiter.Close()

	// Initialize handler
	h := handler.New(gateway, detailsService, coordinator, limiter, metrics, logger)

	// Setup routes with logging middleware
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Get("/healthz", obs.HealthHandler(logger))
	r.Get("/metrics", metrics.MetricsHandler())
	h.Register(r)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
	})

	// Configure server. The write timeout leaves room for the admin-ajax call.
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Ajax.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
