package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func main() {
	port := getEnv("PORT", "9001")
	nonce := getEnv("UPSTREAM_NONCE", "")

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	failureRate, err := strconv.ParseFloat(getEnv("FAILURE_RATE", "0.1"), 64)
	if err != nil || failureRate < 0 || failureRate > 1 {
		logger.Error("invalid FAILURE_RATE", "value", os.Getenv("FAILURE_RATE"))
		os.Exit(1)
	}

	backend := NewMock(nonce, failureRate, logger)
	logger.Info("starting upstream mock", "port", port, "failure_rate", failureRate, "nonce_required", nonce != "")

	// Setup routes
	mux := http.NewServeMux()
	mux.Handle("POST /wp-admin/admin-ajax.php", backend)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write healthz response", "error", err)
		}
	})

	// Configure server
	addr := ":" + port
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
