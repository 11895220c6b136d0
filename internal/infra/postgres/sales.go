// Package postgres replaces the relational sales table with the enriched dataset.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DefaultTable is the destination used when none is configured.
const DefaultTable = "public.ventas"

// columnTypes gives the SQL type of every dataset column. Columns not listed are text.
var columnTypes = map[string]string{
	domain.ColTransactionDate: "date",
	domain.ColQuantity:        "numeric",
	domain.ColAmountLocal:     "numeric",
	domain.ColAmountUSD:       "numeric",
	domain.ColCost:            "numeric",
	domain.ColYear:            "integer",
	domain.ColTarget:          "numeric",
}

// SalesRepository writes the dataset to a Postgres table through a connection pool.
type SalesRepository struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

// NewSalesRepository connects to dsn. table may be schema-qualified.
func NewSalesRepository(ctx context.Context, dsn, table string) (*SalesRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("NewSalesRepository: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewSalesRepository: ping: %w", err)
	}
	return &SalesRepository{pool: pool, table: ParseTableName(table)}, nil
}

// Close releases the pool.
func (r *SalesRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Destination returns the qualified table name.
func (r *SalesRepository) Destination() string {
	return "postgres:" + strings.Join(r.table, ".")
}

// ReplaceSales drops and recreates the table and copies rows into it, in one
// transaction. Readers see either the previous table or the complete new one.
func (r *SalesRepository) ReplaceSales(ctx context.Context, rows []domain.EnrichedTransaction) error {
	log := logger.FromContext(ctx)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ReplaceSales: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	name := r.table.Sanitize()
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("ReplaceSales: drop table: %w", err)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("ReplaceSales: create table: %w", err)
	}

	values := SalesValues(rows)
	n, err := tx.CopyFrom(ctx, r.table, domain.EnrichedColumns, pgx.CopyFromRows(values))
	if err != nil {
		return fmt.Errorf("ReplaceSales: copy rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ReplaceSales: commit: %w", err)
	}

	log.Info().
		Str("destination", r.Destination()).
		Int64("rows", n).
		Msg("Replaced relational table")
	return nil
}

// ParseTableName splits a possibly schema-qualified table name.
func ParseTableName(table string) pgx.Identifier {
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return pgx.Identifier(parts)
}

// CreateTableSQL returns the DDL of the sales table.
func CreateTableSQL(table pgx.Identifier) string {
	cols := make([]string, len(domain.EnrichedColumns))
	for i, col := range domain.EnrichedColumns {
		typ, ok := columnTypes[col]
		if !ok {
			typ = "text"
		}
		cols[i] = pgx.Identifier{col}.Sanitize() + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table.Sanitize(), strings.Join(cols, ",\n\t"))
}

// SalesValues converts rows into COPY values ordered like domain.EnrichedColumns.
func SalesValues(rows []domain.EnrichedTransaction) [][]any {
	out := make([][]any, len(rows))
	for i := range rows {
		r := &rows[i]

		date := pgtype.Date{}
		year := pgtype.Int4{}
		if y, ok := r.Year(); ok {
			date = pgtype.Date{Time: r.Date.In(time.UTC), Valid: true}
			year = pgtype.Int4{Int32: int32(y), Valid: true}
		}

		out[i] = []any{
			date,
			r.DocumentID,
			r.ArticleCode,
			r.ArticleName,
			r.SupplySourceCode,
			r.SupplySourceName,
			r.ClientCode,
			r.ClientName,
			r.ClientTaxID,
			r.SellerCode,
			r.SellerName,
			numeric(r.Quantity),
			numeric(r.AmountLocal),
			numeric(r.AmountUSD),
			numeric(r.Cost),
			string(r.Kind),
			year,
			r.MonthName(),
			r.YearMonth(),
			r.Family,
			r.Segment,
			r.Brand,
			r.Manager,
			numeric(decimal.NullDecimal{Decimal: r.Target, Valid: true}),
		}
	}
	return out
}

func numeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}
