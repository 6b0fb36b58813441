package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HMasataka/presencehub/hub"
	"github.com/HMasataka/presencehub/identity"
	"github.com/HMasataka/presencehub/internal/config"
	"github.com/HMasataka/presencehub/internal/logging"
	"github.com/HMasataka/presencehub/presence"
	"github.com/HMasataka/presencehub/session"
	"github.com/HMasataka/presencehub/status"
	"github.com/HMasataka/presencehub/ticker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load(config.LoadOptions{
		Path: os.Getenv("PRESENCEHUB_CONFIG"),
	})
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Logging)
	clock := clockwork.NewRealClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := presence.NewRegistry(clock)

	h := hub.New(logger)
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}

	ticks := ticker.NewService(h, clock, cfg.Tick.Interval, logger)
	ticks.Start()

	lifecycle := session.NewLifecycle(h, registry, identity.Default(), clock, logger)
	wsRouter := session.NewRouter(h, registry, clock, logger)
	wsServer := session.NewServer(lifecycle, wsRouter, logger, session.OptionsFromConfig(cfg.WebSocket))

	environment := os.Getenv("PRESENCEHUB_ENV")
	if environment == "" {
		environment = "development"
	}
	statusHandler := status.NewHandler(registry, ticks, h, environment)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	statusHandler.Routes(r)
	r.Get("/ws", wsServer.Handle)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	waitForShutdown(ctx, srv, ticks, h, logger)
}

func waitForShutdown(ctx context.Context, srv *http.Server, ticks *ticker.Service, h *hub.Hub, logger *logging.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, cleaning up")
	case <-ctx.Done():
	}

	// Stop producing ticks before tearing the fan-out path down.
	ticks.Stop()

	if err := h.Stop(); err != nil {
		logger.Error("hub shutdown error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
