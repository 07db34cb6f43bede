package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/JonMunkholm/TableExport/internal/config"
	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/core/tables"
	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/history"
	"github.com/JonMunkholm/TableExport/internal/logging"
	"github.com/JonMunkholm/TableExport/internal/web"
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
	slog.Debug("configuration", "config", cfg.String())

	// Size GOMAXPROCS to the container CPU quota; the export worker count derives from it
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		slog.Info(fmt.Sprintf(format, args...))
	}))
	defer undo()
	if err != nil {
		slog.Warn("failed to set GOMAXPROCS", "error", err)
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"export_workers", export.DefaultWorkers(cfg.Export.ReservedThreads),
		"export_max_concurrent", cfg.Export.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	// Postgres is optional; it only backs SOURCE_PG_TABLES
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
	}

	if err := registerTables(cfg, pool); err != nil {
		slog.Error("failed to register tables", "error", err)
		os.Exit(1)
	}
	slog.Info("tables registered",
		"count", core.TableCount(),
		"groups", len(core.Groups()),
	)
	if core.TableCount() == 0 {
		slog.Warn("no tables registered; set SOURCE_CSV_DIR or SOURCE_PG_TABLES")
	}

	partial, err := export.ParsePartialPolicy(cfg.Export.PartialFile)
	if err != nil {
		slog.Error("invalid partial file policy", "error", err)
		os.Exit(1)
	}

	limiter := core.NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime)
	metrics := core.NewMetrics(limiter)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	opts := []core.ServiceOption{core.WithLimiter(limiter), core.WithMetrics(metrics)}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.DBPath)
		if err != nil {
			slog.Error("failed to open history store", "path", cfg.History.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, core.WithHistory(store))
	}

	service := core.NewService(core.ServiceConfig{
		OutputDir:       cfg.Export.OutputDir,
		ChunkSize:       cfg.Export.ChunkSize,
		ReservedThreads: cfg.Export.ReservedThreads,
		Workers:         cfg.Export.Workers,
		MaxWorkers:      cfg.Export.MaxWorkers,
		Partial:         partial,
		Timeout:         cfg.Export.Timeout,
		MaxConcurrent:   cfg.Export.MaxConcurrent,
		MaxWaitTime:     cfg.Export.MaxWaitTime,
		ResultRetention: cfg.Export.ResultRetention,
	}, opts...)

	server := web.NewServer(service, cfg, registry)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if store != nil {
		go service.StartHistoryPruner(jobCtx, core.HistoryPruneConfig{
			RetentionDays: cfg.History.RetentionDays,
			CheckInterval: cfg.History.CheckInterval,
		})
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active exports to complete (with timeout)
		if status := service.ExportLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for exports to complete", "active", status.Active)
			if err := service.WaitForExports(shutdownCtx); err != nil {
				slog.Warn("exports did not complete in time, cancelling", "error", err)
				service.CancelAll()
				drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
				service.WaitForExports(drainCtx)
				drainCancel()
			} else {
				slog.Info("all exports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// connect opens and verifies the Postgres pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// registerTables registers CSV and Postgres sources from config.
func registerTables(cfg *config.Config, pool *pgxpool.Pool) error {
	var errs []error
	if cfg.Sources.CSVDir != "" {
		if _, err := tables.RegisterCSVDir(cfg.Sources.CSVDir); err != nil {
			errs = append(errs, err)
		}
	}
	if len(cfg.Sources.PostgresTables) > 0 && pool != nil {
		if _, err := tables.RegisterPostgres(pool, cfg.Sources.PostgresTables); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
