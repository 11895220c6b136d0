// Package bootstrap builds the collaborators shared by the binaries from a
// loaded configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/config"
	infraBQ "github.com/dvloznov/sales-tracker/internal/infra/bigquery"
	"github.com/dvloznov/sales-tracker/internal/infra/postgres"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/pipeline"
	"github.com/dvloznov/sales-tracker/internal/salesapi"
	"github.com/rs/zerolog"
)

// Logger builds the process logger from cfg.
func Logger(cfg *config.Config) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// Fetcher returns the sales API client, or nil when no API URL is configured.
func Fetcher(cfg *config.Config) pipeline.SalesFetcher {
	if cfg.SalesAPI.URL == "" {
		return nil
	}
	return salesapi.NewClient(salesapi.Config{
		BaseURL:     cfg.SalesAPI.URL,
		AuthToken:   cfg.SalesAPI.Token,
		Timeout:     cfg.SalesAPI.Timeout,
		MaxAttempts: cfg.SalesAPI.MaxAttempts,
		Backoff:     cfg.SalesAPI.Backoff,
	})
}

// Loaders opens every configured downstream destination. The returned close
// function releases them and is safe to call when no loader was opened.
func Loaders(ctx context.Context, cfg *config.Config) ([]pipeline.SalesLoader, func(), error) {
	var (
		loaders []pipeline.SalesLoader
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Postgres.Enabled() {
		repo, err := postgres.NewSalesRepository(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("postgres destination: %w", err)
		}
		loaders = append(loaders, repo)
		closers = append(closers, repo.Close)
	}

	if cfg.BigQuery.Enabled() {
		repo, err := infraBQ.NewSalesRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("bigquery destination: %w", err)
		}
		loaders = append(loaders, repo)
		closers = append(closers, repo.Close)
	}

	return loaders, closeAll, nil
}

// Deps assembles the pipeline collaborators. withLoaders opens the
// downstream destinations as well.
func Deps(ctx context.Context, cfg *config.Config, withLoaders bool) (pipeline.Deps, func(), error) {
	deps := pipeline.Deps{
		Store:         artifacts.NewRouter(),
		Fetcher:       Fetcher(cfg),
		MonthlyChunks: cfg.SalesAPI.ChunkMonthly,
	}
	if !withLoaders {
		return deps, func() {}, nil
	}
	loaders, closeAll, err := Loaders(ctx, cfg)
	if err != nil {
		return deps, closeAll, err
	}
	deps.Loaders = loaders
	return deps, closeAll, nil
}

// Runner builds the queue job handler for cfg.
func Runner(cfg *config.Config, deps pipeline.Deps) *pipeline.Runner {
	return &pipeline.Runner{
		Deps:         deps,
		StartDate:    cfg.SalesAPI.StartDate,
		ReferenceURI: cfg.ReferenceURI,
		DatasetURI:   cfg.DatasetURI,
		LegacyURI:    cfg.LegacyWorkbookURI,
	}
}
