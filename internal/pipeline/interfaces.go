package pipeline

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
)

// SalesFetcher provides raw API-format records for a date range.
// This interface enables mocking of the upstream sales API.
type SalesFetcher interface {
	// FetchRange returns every record dated between start and end inclusive.
	FetchRange(ctx context.Context, start, end civil.Date, monthly bool) ([]domain.RawTransaction, error)
}

// SalesLoader replaces a downstream table with the enriched dataset.
type SalesLoader interface {
	ReplaceSales(ctx context.Context, rows []domain.EnrichedTransaction) error
	Destination() string
}
