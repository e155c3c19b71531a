package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talonscan/talon/internal/cache"
	"github.com/talonscan/talon/internal/checks"
	"github.com/talonscan/talon/internal/config"
	"github.com/talonscan/talon/internal/database"
	"github.com/talonscan/talon/internal/events"
	"github.com/talonscan/talon/internal/handler"
	"github.com/talonscan/talon/internal/plan"
	"github.com/talonscan/talon/internal/registry"
	"github.com/talonscan/talon/internal/service"
	"github.com/talonscan/talon/internal/webhook"
	"github.com/talonscan/talon/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Talon Scan Service", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional persistence
	var (
		db       *database.MongoDB
		scanRepo *database.ScanRepository
		archive  service.ArchiveRepository
	)
	if cfg.PersistenceEnabled {
		var err error
		db, err = database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				slog.Error("Failed to disconnect from MongoDB", "error", err)
			}
		}()

		if err := database.CreateIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}

		scanRepo = database.NewScanRepository(db)
		archive = scanRepo
	}

	// Core wiring: registry, resolver, cache store
	reg := registry.New()
	resolver := service.NewJobResolver(reg, archive)

	var cacheStore cache.Store
	if cfg.PersistenceEnabled {
		cacheStore = database.NewCacheRepository(db, resolver)
	} else {
		cacheStore = cache.NewMemoryStore(resolver)
	}

	// Check dispatch table; a misconfigured table is a startup error
	httpClient := service.NewHTTPClient(cfg.OutboundTimeout)
	table, err := checks.NewTable(httpClient, cfg.TLSSidecarURL)
	if err != nil {
		slog.Error("Failed to build check table", "error", err)
		os.Exit(1)
	}

	// Event sinks
	sinks := events.MultiSink{events.LogSink{}}
	var asyncSink *events.AsyncSink
	if cfg.NotifyWebhookURL != "" {
		notifier := webhook.NewNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookTimeout, webhook.RetryConfig{})
		asyncSink = events.NewAsyncSink(events.NewWebhookSink(notifier, cfg.NotifyWebhookTimeout), 256)
		sinks = append(sinks, asyncSink)
	}

	// Orchestrator
	orchestrator := service.NewOrchestrator(reg, cacheStore, plan.NewPolicy(), table, sinks, archive, service.Options{
		CheckTimeout:        cfg.CheckTimeout,
		ScanTimeout:         cfg.ScanTimeout,
		MaxConcurrentChecks: cfg.MaxConcurrentChecks,
	})

	// Janitor
	janitor, err := service.NewJanitor(cacheStore, reg, cfg.JanitorSchedule, cfg.RegistryMaxAge)
	if err != nil {
		slog.Error("Failed to create janitor", "error", err)
		os.Exit(1)
	}
	janitor.Start()

	// Handlers
	scanHandler := handler.NewScanHandler(orchestrator)
	cacheHandler := handler.NewCacheHandler(cacheStore)
	var historyHandler *handler.HistoryHandler
	if scanRepo != nil {
		historyHandler = handler.NewHistoryHandler(scanRepo)
	}
	healthHandler := handler.NewHealthHandler(db, version)

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	router := handler.NewRouter(scanHandler, cacheHandler, historyHandler, healthHandler, corsConfig)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight scans settle before tearing anything down
	orchestrator.Close(shutdownCtx)

	janitor.Stop(shutdownCtx)
	if asyncSink != nil {
		asyncSink.Close()
	}

	slog.Info("Talon Scan Service stopped")
}
