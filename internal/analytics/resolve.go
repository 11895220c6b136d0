package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
)

// All disables a filter control.
const All = "Todos"

// Grouping is the time bucketing applied to pivot columns.
type Grouping int

const (
	// GroupTotalOnly has no time buckets: only the Total column is shown.
	GroupTotalOnly Grouping = iota
	// GroupYearMonth buckets by "YYYY-MM" in chronological order.
	GroupYearMonth
	// GroupMonthName buckets by Spanish month name, Enero through Diciembre.
	GroupMonthName
)

func (g Grouping) String() string {
	switch g {
	case GroupTotalOnly:
		return "total"
	case GroupYearMonth:
		return "year_month"
	case GroupMonthName:
		return "month_name"
	default:
		return fmt.Sprintf("Grouping(%d)", int(g))
	}
}

// Selection is one combination of dashboard filter controls. Empty strings
// and All both disable a dimension filter; Year 0 means all years.
type Selection struct {
	Seller       string
	Article      string
	SupplySource string
	Year         int

	Trailing3  bool
	Trailing6  bool
	Trailing12 bool
}

// Window returns the trailing window in months, or 0 when none is set.
// The narrowest window wins when several flags are set.
func (s Selection) Window() int {
	switch {
	case s.Trailing3:
		return 3
	case s.Trailing6:
		return 6
	case s.Trailing12:
		return 12
	default:
		return 0
	}
}

// WithWindow returns s with only the flag for months set. Unsupported values clear all flags.
func (s Selection) WithWindow(months int) Selection {
	s.Trailing3 = months == 3
	s.Trailing6 = months == 6
	s.Trailing12 = months == 12
	return s
}

// ParseYear parses a year control value. All and "" map to 0.
func ParseYear(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, All) || strings.EqualFold(v, "all") {
		return 0, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 {
		return 0, fmt.Errorf("invalid year %q", v)
	}
	return y, nil
}

func formatYear(y int) string {
	return strconv.Itoa(y)
}

// Resolution is a filtered subset of a dataset with the grouping to pivot it by.
type Resolution struct {
	Rows     []domain.EnrichedTransaction
	Grouping Grouping

	// Reference is the day windows are anchored at: the day before the query time.
	Reference civil.Date
	// Window is the applied trailing window in months; Since is its first included day.
	Window int
	Since  civil.Date
}

// NoData reports whether the selection matched no rows. Callers must surface it
// distinctly from a table whose sums happen to be zero.
func (r *Resolution) NoData() bool {
	return r == nil || len(r.Rows) == 0
}

// Resolve applies sel to ds. Dimension filters apply first by exact match. Then
// a trailing window keeps rows dated on or after Reference minus N months and
// groups by year-month; otherwise a year keeps that year and groups by month
// name; otherwise no time filter applies and only totals are shown. Rows with
// an invalid date never match a time filter.
func Resolve(ds *Dataset, sel Selection, now time.Time) *Resolution {
	res := &Resolution{
		Reference: civil.DateOf(now).AddDays(-1),
		Window:    sel.Window(),
	}

	var keep func(r *domain.EnrichedTransaction) bool
	switch {
	case res.Window > 0:
		res.Grouping = GroupYearMonth
		res.Since = domain.AddMonths(res.Reference, -res.Window)
		keep = func(r *domain.EnrichedTransaction) bool {
			return r.DateValid && !r.Date.Before(res.Since)
		}
	case sel.Year != 0:
		res.Grouping = GroupMonthName
		keep = func(r *domain.EnrichedTransaction) bool {
			y, ok := r.Year()
			return ok && y == sel.Year
		}
	default:
		res.Grouping = GroupTotalOnly
		keep = func(*domain.EnrichedTransaction) bool { return true }
	}

	if ds == nil {
		return res
	}
	for i := range ds.rows {
		r := &ds.rows[i]
		if !matches(sel.Seller, r.SellerName) ||
			!matches(sel.Article, r.ArticleCode) ||
			!matches(sel.SupplySource, r.SupplySourceName) {
			continue
		}
		if keep(r) {
			res.Rows = append(res.Rows, *r)
		}
	}
	return res
}

func matches(filter, value string) bool {
	return filter == "" || filter == All || filter == value
}
