package analytics

import (
	"fmt"
	"sort"

	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// TotalLabel names the synthetic total row and column.
const TotalLabel = "Total"

// Dimension is the row axis of a pivot table.
type Dimension int

const (
	// BySupplySource groups rows by supply source name.
	BySupplySource Dimension = iota
	// ByClient groups rows by client name.
	ByClient
)

func (d Dimension) String() string {
	switch d {
	case BySupplySource:
		return "supply_source"
	case ByClient:
		return "client"
	default:
		return fmt.Sprintf("Dimension(%d)", int(d))
	}
}

// Title is the row header shown above the labels.
func (d Dimension) Title() string {
	if d == ByClient {
		return "Cliente"
	}
	return "Fuente Suministro"
}

func (d Dimension) label(r *domain.EnrichedTransaction) string {
	var v string
	if d == ByClient {
		v = r.ClientName
	} else {
		v = r.SupplySourceName
	}
	if v == "" {
		return domain.UnknownAttribute
	}
	return v
}

// PivotRow is one labelled row of a pivot table. Cells align with PivotTable.Columns.
type PivotRow struct {
	Label string
	Cells []decimal.Decimal
}

// PivotTable is a dense matrix of summed USD amounts. The last column and the
// last row are totals. Cells keep full precision; use Rounded for display.
type PivotTable struct {
	Dimension Dimension
	Grouping  Grouping
	Columns   []string
	Rows      []PivotRow
}

// Aggregate sums amount_usd by (dimension label, time bucket) and appends the
// Total column and Total row. Absent combinations are 0. Labels are sorted
// ascending. For GroupTotalOnly the bucket columns are dropped after totalling.
func Aggregate(rows []domain.EnrichedTransaction, grouping Grouping, dim Dimension) *PivotTable {
	sums := make(map[string]map[string]decimal.Decimal)
	observed := make(map[string]struct{})

	for i := range rows {
		r := &rows[i]
		label := dim.label(r)
		bucket := bucketOf(r, grouping)
		observed[bucket] = struct{}{}

		byBucket, ok := sums[label]
		if !ok {
			byBucket = make(map[string]decimal.Decimal)
			sums[label] = byBucket
		}
		if r.AmountUSD.Valid {
			byBucket[bucket] = byBucket[bucket].Add(r.AmountUSD.Decimal)
		} else if _, ok := byBucket[bucket]; !ok {
			byBucket[bucket] = decimal.Zero
		}
	}

	buckets := bucketColumns(grouping, observed)
	labels := make([]string, 0, len(sums))
	for l := range sums {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	table := &PivotTable{
		Dimension: dim,
		Grouping:  grouping,
		Columns:   append(append([]string{}, buckets...), TotalLabel),
	}

	totals := make([]decimal.Decimal, len(table.Columns))
	for _, label := range labels {
		cells := make([]decimal.Decimal, len(table.Columns))
		rowTotal := decimal.Zero
		for j, b := range buckets {
			v := sums[label][b] // zero value is 0
			cells[j] = v
			rowTotal = rowTotal.Add(v)
		}
		cells[len(buckets)] = rowTotal
		for j := range cells {
			totals[j] = totals[j].Add(cells[j])
		}
		table.Rows = append(table.Rows, PivotRow{Label: label, Cells: cells})
	}
	table.Rows = append(table.Rows, PivotRow{Label: TotalLabel, Cells: totals})

	if grouping == GroupTotalOnly {
		table.collapseToTotal()
	}
	return table
}

// collapseToTotal keeps only the Total column.
func (p *PivotTable) collapseToTotal() {
	last := len(p.Columns) - 1
	p.Columns = []string{TotalLabel}
	for i := range p.Rows {
		p.Rows[i].Cells = []decimal.Decimal{p.Rows[i].Cells[last]}
	}
}

func bucketOf(r *domain.EnrichedTransaction, g Grouping) string {
	switch g {
	case GroupMonthName:
		return r.MonthName()
	default:
		// Total-only tables are bucketed by year-month too, then collapsed.
		return r.YearMonth()
	}
}

func bucketColumns(g Grouping, observed map[string]struct{}) []string {
	if g == GroupMonthName {
		return domain.MonthNamesES()
	}
	cols := make([]string, 0, len(observed))
	for b := range observed {
		cols = append(cols, b)
	}
	// "YYYY-MM" sorts chronologically as text.
	sort.Strings(cols)
	return cols
}

// Cell returns the value at (row label, column).
func (p *PivotTable) Cell(row, col string) (decimal.Decimal, bool) {
	ci := -1
	for j, c := range p.Columns {
		if c == col {
			ci = j
			break
		}
	}
	if ci < 0 {
		return decimal.Decimal{}, false
	}
	for _, r := range p.Rows {
		if r.Label == row {
			return r.Cells[ci], true
		}
	}
	return decimal.Decimal{}, false
}

// Labels returns the row labels, Total last.
func (p *PivotTable) Labels() []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Label
	}
	return out
}

// GrandTotal returns the Total row's Total cell.
func (p *PivotTable) GrandTotal() decimal.Decimal {
	last := p.Rows[len(p.Rows)-1]
	return last.Cells[len(last.Cells)-1]
}

// Rounded returns every cell rounded to the nearest integer, half to even.
// Rounding happens only here, after all sums.
func (p *PivotTable) Rounded() [][]int64 {
	out := make([][]int64, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = make([]int64, len(r.Cells))
		for j, c := range r.Cells {
			out[i][j] = c.RoundBank(0).IntPart()
		}
	}
	return out
}
