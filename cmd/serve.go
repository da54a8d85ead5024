package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	database "github.com/FACorreiaa/easytrip-api/app/db"
	appLogger "github.com/FACorreiaa/easytrip-api/app/logger"
	"github.com/FACorreiaa/easytrip-api/internal/container"
	"github.com/FACorreiaa/easytrip-api/internal/router"
)

type ServeCmd struct {
	SkipMigrations bool `help:"Do not apply migrations on startup"`
}

func (s *ServeCmd) Run(c *Context) error {
	cfg := c.Config
	logger := c.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !s.SkipMigrations {
		dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
		if err != nil {
			return err
		}
		// Run migrations *before* initializing the main pool
		if err = database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
			return err
		}
	}

	app, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer closeCancel()
		if err := app.Close(closeCtx); err != nil {
			logger.Error("Failed to release resources", slog.Any("error", err))
		}
	}()

	if !app.WaitForDB(ctx) {
		return errors.New("database not ready")
	}

	if app.Consumer != nil {
		go func() {
			if err := app.Consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Image consumer stopped", slog.Any("error", err))
			}
		}()
	}

	timeout := cfg.Server.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(timeout))
	mux.Mount("/", router.SetupRouter(app.RouterConfig()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: timeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	servers := []*http.Server{srv}

	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", app.MetricsHandler())
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Metrics.Port),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, hs := range servers {
		go func() {
			logger.Info("Starting HTTP server", slog.String("address", hs.Addr))
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server ListenAndServe error", slog.String("address", hs.Addr), slog.Any("error", err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	for _, hs := range servers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server graceful shutdown failed", slog.String("address", hs.Addr), slog.Any("error", err))
		}
	}
	logger.Info("Application shut down complete.")
	return nil
}
