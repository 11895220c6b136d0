package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/jobs"
	"github.com/dvloznov/sales-tracker/internal/jobs/inmemory"
	"github.com/dvloznov/sales-tracker/internal/logger"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := bootstrap.Logger(cfg)

	interval := flag.Duration("interval", 24*time.Hour, "Time between daily runs")
	runNow := flag.Bool("run-now", true, "Queue a run at startup")
	flag.Parse()

	if cfg.SalesAPI.URL == "" {
		log.Fatal().Msg("Error: SALES_API_URL is required")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	deps, closeLoaders, err := bootstrap.Deps(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destinations")
	}
	defer closeLoaders()

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, jobStore)

	log.Info().Dur("interval", *interval).Msg("Starting worker service")

	if err := jobQueue.Start(ctx, bootstrap.Runner(cfg, deps).Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	enqueue := func() {
		job := &jobs.RunPipelineJob{Source: jobs.SourceAPI}
		if err := jobQueue.PublishRunPipeline(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to queue daily run")
			return
		}
		log.Info().Str("job_id", job.JobID).Msg("Daily run queued")
	}

	if *runNow {
		enqueue()
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case <-ticker.C:
			enqueue()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for the in-flight run
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
