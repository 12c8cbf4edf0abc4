// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main is the entry point for the ocms-pages content API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/olegiv/ocms-pages/internal/cache"
	"github.com/olegiv/ocms-pages/internal/config"
	"github.com/olegiv/ocms-pages/internal/handler"
	"github.com/olegiv/ocms-pages/internal/handler/api"
	"github.com/olegiv/ocms-pages/internal/logging"
	"github.com/olegiv/ocms-pages/internal/media"
	"github.com/olegiv/ocms-pages/internal/metrics"
	"github.com/olegiv/ocms-pages/internal/middleware"
	"github.com/olegiv/ocms-pages/internal/otelx"
	"github.com/olegiv/ocms-pages/internal/scheduler"
	"github.com/olegiv/ocms-pages/internal/service"
	"github.com/olegiv/ocms-pages/internal/store"
	"github.com/olegiv/ocms-pages/internal/version"
	"github.com/olegiv/ocms-pages/internal/webhook"
)

// Build-time variables injected via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ocms-pages - versioned page content API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_DRIVER         sqlite|postgres (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH           SQLite database path (default: ./data/ocms-pages.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DATABASE_URL      PostgreSQL connection string\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_MEDIA_BACKEND     local|s3 (default: local)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL         Redis URL for the published page cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_WEBHOOK_URLS      Comma-separated webhook endpoints (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_OTEL_ENDPOINT     OTLP gRPC endpoint for traces (optional)\n")
	}

	flag.Parse()

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelx.Init(ctx, otelx.Options{
		Endpoint: cfg.OTELEndpoint,
		Insecure: cfg.OTELInsecure,
		Sample:   cfg.OTELSampleRatio,
		Service:  "ocms-pages",
		Version:  info.Short(),
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Error("error shutting down tracing", "error", err)
		}
	}()

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	queries := store.NewWithDialect(db, dialect)

	// Upgrade logger to also write WARN and ERROR logs to the event table
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger = slog.New(logging.NewEventLogHandler(textHandler, queries))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	mediaStore, err := openMedia(ctx, cfg)
	if err != nil {
		return err
	}

	c, backend, err := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxSize:    cfg.CacheMaxSize,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = c.Close() }()
	if backend == "redis" {
		slog.Info("published cache initialized", "backend", backend, "url", cache.SanitizeRedisURL(cfg.RedisURL))
	} else {
		slog.Info("published cache initialized", "backend", backend)
	}
	var cachePinger handler.Pinger
	if p, ok := c.(handler.Pinger); ok {
		cachePinger = p
	}

	m := metrics.New()

	opts := service.Options{
		Media:     mediaStore,
		Published: cache.NewPublishedCache(c, cfg.CacheTTLDuration()),
		Metrics:   m,
		Logger:    logger,
	}

	if len(cfg.WebhookURLs) > 0 {
		wcfg := webhook.DefaultConfig()
		wcfg.URLs = cfg.WebhookURLs
		wcfg.Secret = cfg.WebhookSecret
		wcfg.Workers = cfg.WebhookWorkers
		wcfg.Rate = cfg.WebhookRate
		wcfg.AllowPrivate = cfg.IsDevelopment()
		dispatcher, err := webhook.NewDispatcher(logger, wcfg)
		if err != nil {
			return fmt.Errorf("initializing webhooks: %w", err)
		}
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		opts.Notifier = dispatcher
		slog.Info("webhook dispatcher started", "endpoints", len(cfg.WebhookURLs), "workers", wcfg.Workers)
	}

	sched := scheduler.New(queries, logger, scheduler.Config{
		DraftPurgeSchedule: cfg.DraftPurgeSchedule,
		DraftRetention:     cfg.DraftRetention(),
		EventPurgeSchedule: scheduler.DefaultEventPurgeSchedule,
		EventRetention:     cfg.EventRetention(),
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	svc := service.NewContentService(db, queries, opts)
	apiHandler := api.NewHandler(svc, logger)
	healthHandler := handler.NewHealthHandler(db, cachePinger, info.Short())

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Handle("/metrics", m.Handler())

	if cfg.MediaBackend == "local" && strings.HasPrefix(cfg.MediaBaseURL, "/") {
		prefix := strings.TrimSuffix(cfg.MediaBaseURL, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeoutDuration()))
		r.Mount("/api/v1", otelhttp.NewHandler(
			apiHandler.Routes(middleware.TenantRateLimit(cfg.APIRate, cfg.APIBurst)),
			"api",
		))
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeoutDuration() + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Short())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func openDatabase(cfg *config.Config) (*sql.DB, store.Dialect, error) {
	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, 0, err
	}

	target := cfg.DatabaseURL
	if dialect == store.DialectSQLite {
		target = cfg.DBPath
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, 0, fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", dialect.String())
	db, err := store.Open(dialect, target)
	if err != nil {
		return nil, 0, fmt.Errorf("initializing database: %w", err)
	}

	slog.Info("running database migrations")
	if err := store.MigrateDialect(db, dialect); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")
	return db, dialect, nil
}

func openMedia(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "s3":
		s, err := media.NewS3Store(ctx, media.S3Options{
			Bucket: cfg.S3Bucket,
			Prefix: cfg.S3Prefix,
			Region: cfg.S3Region,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing s3 media store: %w", err)
		}
		slog.Info("media store initialized", "backend", "s3", "bucket", cfg.S3Bucket)
		return s, nil
	default:
		s, err := media.NewLocalStore(cfg.UploadsDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing local media store: %w", err)
		}
		slog.Info("media store initialized", "backend", "local", "dir", cfg.UploadsDir)
		return s, nil
	}
}
