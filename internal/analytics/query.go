package analytics

import (
	"time"

	"cloud.google.com/go/civil"
)

// Result is the answer to one dashboard query. When NoData is true the
// tables are nil.
type Result struct {
	NoData         bool
	Grouping       Grouping
	Reference      civil.Date
	Window         int
	Since          civil.Date
	MatchedRows    int
	BySupplySource *PivotTable
	ByClient       *PivotTable
}

// Query resolves sel against ds and builds both pivot tables.
func Query(ds *Dataset, sel Selection, now time.Time) *Result {
	res := Resolve(ds, sel, now)
	out := &Result{
		NoData:      res.NoData(),
		Grouping:    res.Grouping,
		Reference:   res.Reference,
		Window:      res.Window,
		Since:       res.Since,
		MatchedRows: len(res.Rows),
	}
	if out.NoData {
		return out
	}
	out.BySupplySource = Aggregate(res.Rows, res.Grouping, BySupplySource)
	out.ByClient = Aggregate(res.Rows, res.Grouping, ByClient)
	return out
}
