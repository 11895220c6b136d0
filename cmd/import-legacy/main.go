package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/pipeline"
)

func main() {
	cfg := config.Load()
	log := bootstrap.Logger(cfg)

	workbook := flag.String("workbook", cfg.LegacyWorkbookURI, "Historical workbook, .xlsx only (local path or gs:// URI)")
	skipLoad := flag.Bool("skip-load", false, "Persist the dataset without loading downstream tables")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Imports the historical sales workbook. Only .xlsx is read; convert an")
		fmt.Fprintln(flag.CommandLine.Output(), "old .xls export first, e.g. libreoffice --headless --convert-to xlsx ventas.xls")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := checkWorkbook(*workbook); err != nil {
		log.Fatal().Err(err).Str("workbook", *workbook).Msg("Invalid --workbook")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	deps, closeLoaders, err := bootstrap.Deps(ctx, cfg, !*skipLoad)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open destinations")
	}
	defer closeLoaders()

	state := &pipeline.PipelineState{
		SourceURI:    *workbook,
		ReferenceURI: cfg.ReferenceURI,
		DatasetURI:   cfg.DatasetURI,
	}

	log.Info().Str("workbook", *workbook).Msg("Starting legacy import")

	if err := pipeline.NewLegacyImportPipeline(deps).Execute(ctx, state); err != nil {
		log.Error().
			Err(err).
			Bool("configuration_error", pipeline.IsConfigurationError(err)).
			Msg("Legacy import failed")
		closeLoaders()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(state.Summary())
}

// checkWorkbook rejects an empty path and old binary .xls exports, which the
// xlsx reader cannot open.
func checkWorkbook(uri string) error {
	if uri == "" {
		return errors.New("--workbook is required")
	}
	if strings.HasSuffix(strings.ToLower(uri), ".xls") {
		return fmt.Errorf("%s: .xls is not supported, convert the workbook to .xlsx first", uri)
	}
	return nil
}
