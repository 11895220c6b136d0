// Package dataset reads and writes the persisted enriched sales dataset: a
// comma-separated file with the canonical column names as its header.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/shopspring/decimal"
)

// ContentType is the media type of a persisted dataset.
const ContentType = "text/csv"

// ErrMissingColumn is returned by Read when a required column is absent from the header.
var ErrMissingColumn = errors.New("dataset column missing")

// requiredColumns must be present for a dataset to be usable by any consumer.
var requiredColumns = []string{
	domain.ColTransactionDate,
	domain.ColSupplySourceName,
	domain.ColAmountUSD,
}

// Write encodes rows as CSV with domain.EnrichedColumns as the header.
func Write(w io.Writer, rows []domain.EnrichedTransaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.EnrichedColumns); err != nil {
		return fmt.Errorf("dataset.Write: header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(encodeRow(&rows[i])); err != nil {
			return fmt.Errorf("dataset.Write: row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataset.Write: flush: %w", err)
	}
	return nil
}

func encodeRow(r *domain.EnrichedTransaction) []string {
	date, year := "", ""
	if y, ok := r.Year(); ok {
		date = r.Date.String()
		year = strconv.Itoa(y)
	}
	return []string{
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
		formatAmount(r.Quantity),
		formatAmount(r.AmountLocal),
		formatAmount(r.AmountUSD),
		formatAmount(r.Cost),
		string(r.Kind),
		year,
		r.MonthName(),
		r.YearMonth(),
		r.Family,
		r.Segment,
		r.Brand,
		r.Manager,
		r.Target.String(),
	}
}

func formatAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// Read decodes a dataset written by Write. Derived columns (kind, year,
// month name, year-month) are recomputed from the date and amounts rather than
// trusted from the file. Columns are matched by name, so their order may differ.
func Read(r io.Reader) ([]domain.EnrichedTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset.Read: %w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset.Read: header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("dataset.Read: %w: %s", ErrMissingColumn, col)
		}
	}

	var rows []domain.EnrichedTransaction
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset.Read: line %d: %w", line, err)
		}
		rows = append(rows, decodeRow(rec, idx))
	}
	return rows, nil
}

func decodeRow(rec []string, idx map[string]int) domain.EnrichedTransaction {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	amount := func(col string) decimal.NullDecimal {
		s := strings.TrimSpace(get(col))
		if s == "" {
			return decimal.NullDecimal{}
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}

	tx := domain.Transaction{
		DocumentID:       get(domain.ColDocumentID),
		ArticleCode:      get(domain.ColArticleCode),
		ArticleName:      get(domain.ColArticleName),
		SupplySourceCode: get(domain.ColSupplySourceCode),
		SupplySourceName: get(domain.ColSupplySourceName),
		ClientCode:       get(domain.ColClientCode),
		ClientName:       get(domain.ColClientName),
		ClientTaxID:      get(domain.ColClientTaxID),
		SellerCode:       get(domain.ColSellerCode),
		SellerName:       get(domain.ColSellerName),
		Quantity:         amount(domain.ColQuantity),
		AmountLocal:      amount(domain.ColAmountLocal),
		AmountUSD:        amount(domain.ColAmountUSD),
		Cost:             amount(domain.ColCost),
	}
	if d, err := civil.ParseDate(strings.TrimSpace(get(domain.ColTransactionDate))); err == nil {
		tx.Date, tx.DateValid = d, true
	}

	target := decimal.Zero
	if t := amount(domain.ColTarget); t.Valid {
		target = t.Decimal
	}

	return domain.EnrichedTransaction{
		Transaction: domain.NewTransaction(tx),
		Family:      get(domain.ColFamily),
		Segment:     get(domain.ColSegment),
		Brand:       get(domain.ColBrand),
		Manager:     get(domain.ColManager),
		Target:      target,
	}
}

// Save writes rows to uri, replacing any previous dataset.
func Save(ctx context.Context, store artifacts.Store, uri string, rows []domain.EnrichedTransaction) error {
	var buf bytes.Buffer
	if err := Write(&buf, rows); err != nil {
		return fmt.Errorf("dataset.Save: %w", err)
	}
	if err := store.Write(ctx, uri, buf.Bytes(), ContentType); err != nil {
		return fmt.Errorf("dataset.Save: %w", err)
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("uri", uri).
		Int("rows", len(rows)).
		Int("bytes", buf.Len()).
		Msg("Persisted dataset")
	return nil
}

// Load reads the dataset stored at uri.
func Load(ctx context.Context, store artifacts.Store, uri string) ([]domain.EnrichedTransaction, error) {
	data, err := store.Read(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: %w", err)
	}
	rows, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dataset.Load: %s: %w", uri, err)
	}
	return rows, nil
}
