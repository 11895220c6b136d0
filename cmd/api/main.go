package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-tracker/internal/api/handlers"
	"github.com/dvloznov/sales-tracker/internal/api/middleware"
	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/dataset"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/pipeline"
)

func main() {
	cfg := config.Load()

	// Parse command-line flags
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	flag.Parse()

	// Initialize logger
	log := bootstrap.Logger(cfg)

	ctx := logger.WithContext(context.Background(), log)

	// Pipeline collaborators
	deps, closeLoaders, err := bootstrap.Deps(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destinations")
	}
	defer closeLoaders()

	if deps.Fetcher == nil {
		log.Warn().Msg("No SALES_API_URL configured - only legacy runs can be queued")
	}

	// Dashboard snapshot
	snapshot := handlers.NewSnapshot(func(ctx context.Context) ([]domain.EnrichedTransaction, error) {
		return dataset.Load(ctx, deps.Store, cfg.DatasetURI)
	})
	if err := snapshot.Reload(ctx); err != nil {
		log.Warn().Err(err).Str("dataset_uri", cfg.DatasetURI).Msg("Dataset not available yet - queue a run to build it")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	runner := bootstrap.Runner(cfg, deps)
	runner.OnSuccess = func(ctx context.Context, sum pipeline.Summary) {
		if err := snapshot.Reload(ctx); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Msg("Failed to reload dashboard dataset")
		}
	}

	// Start worker in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(snapshot, log)
	runsHandler := handlers.NewRunsHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := handlers.NewMux(dashboardHandler, runsHandler, jobsHandler)

	// Apply middleware
	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.Server.CORSOrigin),
		middleware.BasicAuth(cfg.Server.User, cfg.Server.Password),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Bool("auth", cfg.Server.User != "").Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for the in-flight run
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	cancelWorker()

	log.Info().Msg("Server exited")
}
