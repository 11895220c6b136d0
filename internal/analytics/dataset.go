// Package analytics answers dashboard queries over the enriched sales dataset:
// it resolves a filter selection into a row subset and a grouping mode, then
// pivots summed USD amounts by supply source and by client.
package analytics

import (
	"sort"
	"time"

	"github.com/dvloznov/sales-tracker/internal/domain"
)

// Dataset is an immutable snapshot of the persisted dataset. Queries never
// modify it, so one snapshot can serve concurrent requests.
type Dataset struct {
	rows     []domain.EnrichedTransaction
	loadedAt time.Time
}

// NewDataset creates a snapshot holding a copy of rows.
func NewDataset(rows []domain.EnrichedTransaction, loadedAt time.Time) *Dataset {
	cp := make([]domain.EnrichedTransaction, len(rows))
	copy(cp, rows)
	return &Dataset{rows: cp, loadedAt: loadedAt}
}

// Len returns the number of rows in the snapshot.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// LoadedAt returns when the snapshot was read from storage.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Options lists the values offered by each filter control.
type Options struct {
	Sellers       []string `json:"sellers"`
	Articles      []string `json:"articles"`
	SupplySources []string `json:"supply_sources"`
	Years         []string `json:"years"`
	Windows       []int    `json:"windows"`
}

// Options returns the filter values present in the snapshot. Text dimensions
// are sorted ascending and years descending; each list starts with All.
func (d *Dataset) Options() Options {
	sellers := make(map[string]struct{})
	articles := make(map[string]struct{})
	sources := make(map[string]struct{})
	years := make(map[int]struct{})

	for i := range d.rows {
		r := &d.rows[i]
		sellers[r.SellerName] = struct{}{}
		articles[r.ArticleCode] = struct{}{}
		sources[r.SupplySourceName] = struct{}{}
		if y, ok := r.Year(); ok {
			years[y] = struct{}{}
		}
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(yearList)))
	yearOpts := []string{All}
	for _, y := range yearList {
		yearOpts = append(yearOpts, formatYear(y))
	}

	return Options{
		Sellers:       withAll(sellers),
		Articles:      withAll(articles),
		SupplySources: withAll(sources),
		Years:         yearOpts,
		Windows:       []int{3, 6, 12},
	}
}

func withAll(set map[string]struct{}) []string {
	vals := make([]string, 0, len(set))
	for v := range set {
		if v == "" {
			continue
		}
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return append([]string{All}, vals...)
}
