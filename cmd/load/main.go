package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/dataset"
	"github.com/dvloznov/sales-tracker/internal/logger"
)

func main() {
	cfg := config.Load()
	log := bootstrap.Logger(cfg)

	datasetURI := flag.String("dataset", cfg.DatasetURI, "Persisted dataset to load (local path or gs:// URI)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rows, err := dataset.Load(ctx, artifacts.NewRouter(), *datasetURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read dataset")
	}

	loaders, closeLoaders, err := bootstrap.Loaders(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destinations")
	}
	defer closeLoaders()

	if len(loaders) == 0 {
		log.Warn().Msg("No destination configured; set DATABASE_URL or GCP_PROJECT and BIGQUERY_DATASET")
		return
	}

	failed := 0
	for _, l := range loaders {
		if err := l.ReplaceSales(ctx, rows); err != nil {
			log.Error().Err(err).Str("destination", l.Destination()).Msg("Load failed")
			failed++
			continue
		}
		log.Info().Str("destination", l.Destination()).Int("rows", len(rows)).Msg("Table replaced")
	}

	if failed > 0 {
		closeLoaders()
		log.Fatal().Int("failed", failed).Msg("Some destinations were not loaded")
	}
	fmt.Printf("Loaded %d rows into %d destination(s).\n", len(rows), len(loaders))
}
