package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
)

// ErrRowCountMismatch is returned when the table does not hold every loaded row.
var ErrRowCountMismatch = errors.New("bigquery row count mismatch")

// SalesRepository replaces the warehouse sales table with the enriched dataset.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type SalesRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	tableID   string
}

// NewSalesRepository creates a new instance of SalesRepository for the given table.
func NewSalesRepository(ctx context.Context, projectID, datasetID, tableID string) (*SalesRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewSalesRepository: creating client: %w", err)
	}
	return &SalesRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		tableID:   tableID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *SalesRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Destination returns the fully qualified table name.
func (r *SalesRepository) Destination() string {
	return fmt.Sprintf("bigquery:%s.%s.%s", r.projectID, r.datasetID, r.tableID)
}

// ReplaceSales loads rows into the table, replacing its contents, then checks
// the resulting row count.
func (r *SalesRepository) ReplaceSales(ctx context.Context, rows []domain.EnrichedTransaction) error {
	log := logger.FromContext(ctx)

	if err := ReplaceSalesWithClient(ctx, r.client, r.projectID, r.datasetID, r.tableID, rows); err != nil {
		return err
	}

	n, err := r.CountSales(ctx)
	if err != nil {
		return err
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("ReplaceSales: %w: loaded %d, table has %d", ErrRowCountMismatch, len(rows), n)
	}

	log.Info().
		Str("destination", r.Destination()).
		Int64("rows", n).
		Msg("Replaced warehouse table")
	return nil
}

// CountSales returns the number of rows in the table.
func (r *SalesRepository) CountSales(ctx context.Context) (int64, error) {
	return CountSalesWithClient(ctx, r.client, r.projectID, r.datasetID, r.tableID)
}
