package bigquery

import (
	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-tracker/internal/domain"
)

// salesFieldTypes gives the warehouse type of every dataset column. Columns
// not listed are STRING.
var salesFieldTypes = map[string]bigquery.FieldType{
	domain.ColTransactionDate: bigquery.DateFieldType,
	domain.ColQuantity:        bigquery.NumericFieldType,
	domain.ColAmountLocal:     bigquery.NumericFieldType,
	domain.ColAmountUSD:       bigquery.NumericFieldType,
	domain.ColCost:            bigquery.NumericFieldType,
	domain.ColYear:            bigquery.IntegerFieldType,
	domain.ColTarget:          bigquery.NumericFieldType,
}

// SalesSchema returns the table schema of the sales table. Field order matches
// the persisted dataset header, which the CSV load relies on.
func SalesSchema() bigquery.Schema {
	schema := make(bigquery.Schema, 0, len(domain.EnrichedColumns))
	for _, col := range domain.EnrichedColumns {
		t, ok := salesFieldTypes[col]
		if !ok {
			t = bigquery.StringFieldType
		}
		schema = append(schema, &bigquery.FieldSchema{Name: col, Type: t})
	}
	return schema
}
