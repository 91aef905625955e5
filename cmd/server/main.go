package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/voucherdash/internal/backend"
	"github.com/JonMunkholm/voucherdash/internal/config"
	"github.com/JonMunkholm/voucherdash/internal/core"
	"github.com/JonMunkholm/voucherdash/internal/history"
	"github.com/JonMunkholm/voucherdash/internal/logging"
	"github.com/JonMunkholm/voucherdash/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"api_base_url", cfg.Backend.BaseURL,
		"history_driver", cfg.History.Driver,
		"upload_max_file_size", cfg.Upload.MaxFileSize.String(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()

	// Import history store
	store, err := history.Open(ctx, history.Options{
		Driver:          cfg.History.Driver,
		DatabaseURL:     cfg.History.DatabaseURL,
		MaxConns:        cfg.History.MaxConns,
		MinConns:        cfg.History.MinConns,
		MaxConnLifetime: cfg.History.MaxConnLifetime,
		MaxConnIdleTime: cfg.History.MaxConnIdleTime,
		SQLitePath:      cfg.History.SQLitePath,
		MemoryCapacity:  cfg.History.MemoryCapacity,
	})
	if err != nil {
		slog.Error("failed to open import history", "driver", cfg.History.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Voucher backend client
	client, err := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		slog.Error("failed to create backend client", "error", err)
		os.Exit(1)
	}

	service := core.NewService(client, store, core.ServiceConfig{
		MaxConcurrent: cfg.Upload.MaxConcurrent,
		MaxWait:       cfg.Upload.MaxWaitTime,
		SubmitTimeout: cfg.Upload.Timeout,
		FlowTTL:       cfg.Upload.FlowTTL,
	})

	server := web.NewServer(cfg, client, service)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.CheckInterval,
	})
	go service.StartFlowCleanup(jobCtx, cfg.Upload.CleanupInterval)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
	case err := <-serverErr:
		slog.Error("server stopped", "error", err)
	}

	// Stop background jobs
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	// Let in-flight imports finish so their outcome is recorded before the
	// history store closes
	status := service.SubmitLimiterStatus()
	slog.Info("waiting for imports to complete", "active", status.Active, "flows", service.FlowCount())
	if err := service.WaitForSubmissions(shutdownCtx); err != nil {
		slog.Warn("imports did not complete in time", "error", err)
	} else {
		slog.Info("all imports completed")
	}
}
