package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// referenceHeaders maps accepted targets-table headers to reference fields.
// The business maintains the file with Spanish headers; English ones are accepted too.
var referenceHeaders = map[string]string{
	"fuente_suministro":    domain.ColSupplySourceName,
	"fuente de suministro": domain.ColSupplySourceName,
	"supply_source_name":   domain.ColSupplySourceName,
	"supply_source":        domain.ColSupplySourceName,
	"familia":              domain.ColFamily,
	"family":               domain.ColFamily,
	"segmento":             domain.ColSegment,
	"segment":              domain.ColSegment,
	"marca":                domain.ColBrand,
	"brand":                domain.ColBrand,
	"gestor":               domain.ColManager,
	"manager":              domain.ColManager,
	"meta":                 domain.ColTarget,
	"target":               domain.ColTarget,
}

// ReferenceTable is the targets table indexed by supply source.
type ReferenceTable struct {
	Columns map[string]bool
	Entries map[string]domain.ReferenceEntry
}

// Len returns the number of reference entries.
func (t *ReferenceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// ParseReferenceTable builds a ReferenceTable from a header row and data rows.
// Columns outside the known set are ignored. Rows with a blank supply source are skipped.
func ParseReferenceTable(header []string, rows [][]string) (*ReferenceTable, error) {
	idx := make(map[string]int)
	for i, h := range header {
		col, ok := referenceHeaders[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, seen := idx[col]; !seen {
			idx[col] = i
		}
	}

	table := &ReferenceTable{
		Columns: make(map[string]bool, len(idx)),
		Entries: make(map[string]domain.ReferenceEntry),
	}
	for col := range idx {
		table.Columns[col] = true
	}

	keyIdx, ok := idx[domain.ColSupplySourceName]
	if !ok {
		return nil, fmt.Errorf("ParseReferenceTable: %w: reference table has no supply source column", ErrMissingJoinKey)
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for n, row := range rows {
		if keyIdx >= len(row) || strings.TrimSpace(row[keyIdx]) == "" {
			continue
		}
		key := strings.TrimSpace(row[keyIdx])
		if _, dup := table.Entries[key]; dup {
			return nil, fmt.Errorf("ParseReferenceTable: row %d: %w: %q", n+2, ErrDuplicateReferenceKey, key)
		}

		target := decimal.Zero
		if v, ok := parseAmount(cell(row, domain.ColTarget)); ok {
			target = v.Decimal
		}

		table.Entries[key] = domain.ReferenceEntry{
			SupplySource: key,
			Family:       cell(row, domain.ColFamily),
			Segment:      cell(row, domain.ColSegment),
			Brand:        cell(row, domain.ColBrand),
			Manager:      cell(row, domain.ColManager),
			Target:       target,
		}
	}

	return table, nil
}

// Enrich left-joins normalized transactions with the reference table on the
// supply source name. Output is 1:1 with the input, in the same order. Missing
// categorical attributes become "Unknown" and a missing target becomes 0.
func Enrich(res *NormalizeResult, ref *ReferenceTable) ([]domain.EnrichedTransaction, error) {
	if !res.HasColumn(domain.ColSupplySourceName) {
		return nil, fmt.Errorf("Enrich: %w: sales data has no %s column", ErrMissingJoinKey, domain.ColSupplySourceName)
	}
	if ref == nil || !ref.Columns[domain.ColSupplySourceName] {
		return nil, fmt.Errorf("Enrich: %w: reference table has no supply source column", ErrMissingJoinKey)
	}

	out := make([]domain.EnrichedTransaction, len(res.Transactions))
	for i, tx := range res.Transactions {
		entry, ok := ref.Entries[tx.SupplySourceName]
		if !ok {
			entry = domain.ReferenceEntry{Target: decimal.Zero}
		}
		out[i] = domain.EnrichedTransaction{
			Transaction: tx,
			Family:      orUnknown(entry.Family),
			Segment:     orUnknown(entry.Segment),
			Brand:       orUnknown(entry.Brand),
			Manager:     orUnknown(entry.Manager),
			Target:      entry.Target,
		}
	}
	return out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return domain.UnknownAttribute
	}
	return s
}
