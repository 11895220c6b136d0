package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/sales-tracker/internal/analytics"
	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/bootstrap"
	"github.com/dvloznov/sales-tracker/internal/config"
	"github.com/dvloznov/sales-tracker/internal/dataset"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/render"
)

func main() {
	cfg := config.Load()
	log := bootstrap.Logger(cfg)

	datasetURI := flag.String("dataset", cfg.DatasetURI, "Persisted dataset (local path or gs:// URI)")
	seller := flag.String("seller", analytics.All, "Seller name")
	article := flag.String("article", analytics.All, "Article code")
	supplySource := flag.String("supply-source", analytics.All, "Supply source name")
	year := flag.String("year", analytics.All, "Year, or Todos")
	window := flag.Int("window", 0, "Trailing window in months: 3, 6 or 12")
	listOptions := flag.Bool("options", false, "Print the available filter values and exit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rows, err := dataset.Load(ctx, artifacts.NewRouter(), *datasetURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read dataset")
	}
	ds := analytics.NewDataset(rows, time.Now())

	if *listOptions {
		opts := ds.Options()
		fmt.Printf("Vendedores: %s\n", strings.Join(opts.Sellers, ", "))
		fmt.Printf("Artículos: %s\n", strings.Join(opts.Articles, ", "))
		fmt.Printf("Fuentes de suministro: %s\n", strings.Join(opts.SupplySources, ", "))
		fmt.Printf("Años: %s\n", strings.Join(opts.Years, ", "))
		return
	}

	y, err := analytics.ParseYear(*year)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid --year")
	}
	switch *window {
	case 0, 3, 6, 12:
	default:
		log.Fatal().Int("window", *window).Msg("Error: --window must be 3, 6 or 12")
	}

	sel := analytics.Selection{
		Seller:       *seller,
		Article:      *article,
		SupplySource: *supplySource,
		Year:         y,
	}.WithWindow(*window)

	res := analytics.Query(ds, sel, time.Now())
	log.Debug().
		Str("grouping", res.Grouping.String()).
		Int("matched_rows", res.MatchedRows).
		Msg("Query resolved")

	if err := render.Result(os.Stdout, res); err != nil {
		log.Fatal().Err(err).Msg("Failed to render tables")
	}
}
