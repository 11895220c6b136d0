package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/pipeline"
)

func main() {
	cfg := config.Load()

	// Initialize structured logger
	log := bootstrap.Logger(cfg)

	// Parse CLI flags
	startFlag := flag.String("start", cfg.SalesAPI.StartDate.String(), "First day to fetch (YYYY-MM-DD)")
	endFlag := flag.String("end", "", "Last day to fetch (YYYY-MM-DD); defaults to yesterday")
	monthly := flag.Bool("monthly", cfg.SalesAPI.ChunkMonthly, "Fetch one calendar month per request")
	skipLoad := flag.Bool("skip-load", false, "Persist the dataset without loading downstream tables")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	flag.Parse()

	if cfg.SalesAPI.URL == "" {
		log.Fatal().Msg("Error: SALES_API_URL is required")
	}

	start, err := civil.ParseDate(*startFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid --start")
	}
	_, end := pipeline.DailyRange(start, time.Now())
	if *endFlag != "" {
		if end, err = civil.ParseDate(*endFlag); err != nil {
			log.Fatal().Err(err).Msg("Error: invalid --end")
		}
	}
	if end.Before(start) {
		log.Fatal().Str("start", start.String()).Str("end", end.String()).Msg("Error: end date precedes start date")
	}

	// Create context with timeout so the run doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	deps, closeLoaders, err := bootstrap.Deps(ctx, cfg, !*skipLoad)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destinations")
	}
	defer closeLoaders()
	deps.MonthlyChunks = *monthly

	state := &pipeline.PipelineState{
		Start:        start,
		End:          end,
		ReferenceURI: cfg.ReferenceURI,
		DatasetURI:   cfg.DatasetURI,
	}

	log.Info().
		Str("start", start.String()).
		Str("end", end.String()).
		Bool("monthly", *monthly).
		Int("destinations", len(deps.Loaders)).
		Msg("Starting daily sales run")

	if err := pipeline.NewDailyPipeline(deps).Execute(ctx, state); err != nil {
		log.Error().
			Err(err).
			Bool("configuration_error", pipeline.IsConfigurationError(err)).
			Msg("Daily run failed")
		closeLoaders()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(state.Summary())
}
