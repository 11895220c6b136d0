package bigquery

import (
	"bytes"
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-tracker/internal/dataset"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"google.golang.org/api/iterator"
)

// ReplaceSalesWithClient replaces the contents of the table with rows using a
// CSV load job with WRITE_TRUNCATE. The table is created when missing.
func ReplaceSalesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, tableID string, rows []domain.EnrichedTransaction) error {
	var buf bytes.Buffer
	if err := dataset.Write(&buf, rows); err != nil {
		return fmt.Errorf("ReplaceSales: encoding rows: %w", err)
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.CSV
	src.SkipLeadingRows = 1
	src.AllowQuotedNewlines = true
	src.Schema = SalesSchema()

	loader := client.DatasetInProject(projectID, datasetID).Table(tableID).LoaderFrom(src)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSales: starting load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSales: waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("ReplaceSales: load job failed: %w", err)
	}

	return nil
}

// CountSalesWithClient returns the number of rows currently in the table.
func CountSalesWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, tableID string) (int64, error) {
	q := client.Query(fmt.Sprintf("SELECT COUNT(*) AS row_count FROM `%s.%s.%s`", projectID, datasetID, tableID))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountSales: running query: %w", err)
	}

	var row struct {
		RowCount int64 `bigquery:"row_count"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CountSales: reading result: %w", err)
	}
	return row.RowCount, nil
}
