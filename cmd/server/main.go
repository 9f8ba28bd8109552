package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/jsonbi/internal/config"
	"github.com/JonMunkholm/jsonbi/internal/core"
	"github.com/JonMunkholm/jsonbi/internal/logging"
	"github.com/JonMunkholm/jsonbi/internal/powerbi"
	"github.com/JonMunkholm/jsonbi/internal/web"
)

func main() {
	// Load .env file if it exists; real environment variables win
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"workspace_id", cfg.PowerBI.WorkspaceID,
		"dataset", cfg.PowerBI.DatasetName,
		"max_file_size", cfg.Upload.MaxFileSize,
		"publish_max_concurrent", cfg.Publish.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	history, closeHistory, err := openHistory(ctx, cfg.History)
	if err != nil {
		slog.Error("failed to open publish history", "error", err)
		os.Exit(1)
	}
	defer closeHistory()

	client := powerbi.NewClient(powerbi.Config{
		TenantID:      cfg.PowerBI.TenantID,
		ClientID:      cfg.PowerBI.ClientID,
		ClientSecret:  cfg.PowerBI.ClientSecret,
		WorkspaceID:   cfg.PowerBI.WorkspaceID,
		DatasetName:   cfg.PowerBI.DatasetName,
		AuthorityHost: cfg.PowerBI.AuthorityHost,
		APIBaseURL:    cfg.PowerBI.APIBaseURL,
		Scope:         cfg.PowerBI.Scope,
		TableName:     cfg.PowerBI.TableName,
	},
		powerbi.WithTimeout(cfg.PowerBI.HTTPTimeout),
		powerbi.WithLogger(logger.With("component", "powerbi")),
	)

	service := core.NewService(client, history, core.Options{
		MaxFileSize:            cfg.Upload.MaxFileSize,
		PreviewRows:            cfg.Upload.PreviewRows,
		SessionTTL:             cfg.Upload.SessionTTL,
		MaxSessions:            cfg.Upload.MaxSessions,
		MaxConcurrentPublishes: cfg.Publish.MaxConcurrent,
		MaxPublishWait:         cfg.Publish.MaxWaitTime,
		WorkspaceID:            cfg.PowerBI.WorkspaceID,
		DatasetName:            cfg.PowerBI.DatasetName,
	})

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartSessionSweeper(jobCtx, core.DefaultSweepInterval)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for active publishes to complete (with timeout)
		if st := service.Status().Publishes; st.Active > 0 {
			slog.Info("waiting for publishes to complete", "active", st.Active)
			if err := service.WaitForPublishes(shutdownCtx); err != nil {
				slog.Warn("publishes did not complete in time", "error", err)
			} else {
				slog.Info("all publishes completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		return
	}
	<-done
	slog.Info("server stopped")
}

// openHistory connects the PostgreSQL history store when a database URL is
// configured and falls back to memory otherwise.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (core.HistoryStore, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("publish history kept in memory", "limit", cfg.MemoryLimit)
		return core.NewMemoryHistory(cfg.MemoryLimit), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	history, err := core.NewPgHistory(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return history, pool.Close, nil
}
