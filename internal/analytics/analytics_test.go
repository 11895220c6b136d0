package analytics

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

type row struct {
	date   string // YYYY-MM-DD, empty for an invalid date
	supply string
	client string
	seller string
	qty    string
	usd    string
}

func build(t *testing.T, rows ...row) []domain.EnrichedTransaction {
	t.Helper()
	out := make([]domain.EnrichedTransaction, len(rows))
	for i, r := range rows {
		tx := domain.Transaction{
			SupplySourceName: r.supply,
			ClientName:       r.client,
			SellerName:       r.seller,
			ArticleCode:      "ART-" + r.supply,
		}
		if r.date != "" {
			d, err := civil.ParseDate(r.date)
			if err != nil {
				t.Fatalf("bad test date %q: %v", r.date, err)
			}
			tx.Date, tx.DateValid = d, true
		}
		if r.qty != "" {
			tx.Quantity = decimal.NullDecimal{Decimal: decimal.RequireFromString(r.qty), Valid: true}
		}
		if r.usd != "" {
			tx.AmountUSD = decimal.NullDecimal{Decimal: decimal.RequireFromString(r.usd), Valid: true}
		}
		out[i] = domain.EnrichedTransaction{
			Transaction: domain.NewTransaction(tx),
			Family:      domain.UnknownAttribute,
			Segment:     domain.UnknownAttribute,
			Brand:       domain.UnknownAttribute,
			Manager:     domain.UnknownAttribute,
			Target:      decimal.Zero,
		}
	}
	return out
}

func mustCell(t *testing.T, p *PivotTable, row, col string) int64 {
	t.Helper()
	v, ok := p.Cell(row, col)
	if !ok {
		t.Fatalf("cell (%s, %s) missing; columns %v, rows %v", row, col, p.Columns, p.Labels())
	}
	return v.RoundBank(0).IntPart()
}

var queryTime = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func TestQuery_YearGroupsByMonthName(t *testing.T) {
	ds := NewDataset(build(t,
		row{date: "2024-01-15", supply: "A", client: "X", qty: "5", usd: "100"},
		row{date: "2024-02-10", supply: "A", client: "Y", qty: "-2", usd: "-40"},
		row{date: "2024-02-20", supply: "B", client: "X", qty: "1", usd: "50"},
		row{date: "2023-11-02", supply: "B", client: "X", qty: "1", usd: "999"},
	), queryTime)

	res := Query(ds, Selection{Year: 2024}, queryTime)
	if res.NoData {
		t.Fatal("expected data")
	}
	if res.Grouping != GroupMonthName {
		t.Errorf("Grouping = %v, want month_name", res.Grouping)
	}

	p := res.BySupplySource
	if !reflect.DeepEqual(p.Columns, append(domain.MonthNamesES(), TotalLabel)) {
		t.Errorf("Columns = %v, want Enero..Diciembre, Total", p.Columns)
	}
	if got := p.Labels(); !reflect.DeepEqual(got, []string{"A", "B", TotalLabel}) {
		t.Errorf("Labels = %v", got)
	}

	want := []struct {
		row, col string
		v        int64
	}{
		{"A", "Enero", 100}, {"A", "Febrero", -40}, {"A", TotalLabel, 60},
		{"B", "Enero", 0}, {"B", "Febrero", 50}, {"B", TotalLabel, 50},
		{TotalLabel, "Enero", 100}, {TotalLabel, "Febrero", 10}, {TotalLabel, TotalLabel, 110},
		{"A", "Marzo", 0}, {TotalLabel, "Diciembre", 0},
	}
	for _, w := range want {
		if got := mustCell(t, p, w.row, w.col); got != w.v {
			t.Errorf("cell (%s, %s) = %d, want %d", w.row, w.col, got, w.v)
		}
	}

	if got := mustCell(t, res.ByClient, "X", TotalLabel); got != 150 {
		t.Errorf("client X total = %d, want 150", got)
	}
}

func TestQuery_NoData(t *testing.T) {
	ds := NewDataset(build(t,
		row{date: "2024-01-15", supply: "A", client: "X", seller: "Rosa", usd: "100"},
	), queryTime)

	res := Query(ds, Selection{Seller: "Nobody"}, queryTime)
	if !res.NoData {
		t.Fatal("expected the no-data signal")
	}
	if res.BySupplySource != nil || res.ByClient != nil {
		t.Error("no tables should be built when nothing matched")
	}

	// A legitimate all-zero result is not no-data.
	zero := NewDataset(build(t, row{date: "2024-01-15", supply: "A", usd: "0"}), queryTime)
	if res := Query(zero, Selection{}, queryTime); res.NoData {
		t.Error("zero-sum selection must not report no data")
	}
}

func TestResolve_DimensionFilters(t *testing.T) {
	ds := NewDataset(build(t,
		row{date: "2024-01-15", supply: "A", seller: "Rosa", usd: "1"},
		row{date: "2024-01-15", supply: "B", seller: "Rosa", usd: "2"},
		row{date: "2024-01-15", supply: "A", seller: "Juan", usd: "3"},
	), queryTime)

	tests := []struct {
		name string
		sel  Selection
		want int
	}{
		{"all", Selection{Seller: All, Article: All, SupplySource: All}, 3},
		{"seller", Selection{Seller: "Rosa"}, 2},
		{"seller and source", Selection{Seller: "Rosa", SupplySource: "A"}, 1},
		{"article", Selection{Article: "ART-B"}, 1},
		{"case sensitive", Selection{Seller: "rosa"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(Resolve(ds, tt.sel, queryTime).Rows); got != tt.want {
				t.Errorf("matched %d rows, want %d", got, tt.want)
			}
		})
	}
}

func TestResolve_TrailingWindow(t *testing.T) {
	// Reference day is 2024-06-14; three months back is 2024-03-14.
	ds := NewDataset(build(t,
		row{date: "2024-06-15", supply: "A", usd: "1"},
		row{date: "2024-03-14", supply: "A", usd: "2"},
		row{date: "2024-03-13", supply: "A", usd: "4"},
		row{date: "2023-12-14", supply: "B", usd: "8"},
		row{date: "2023-06-13", supply: "B", usd: "16"},
		row{supply: "B", usd: "32"},
	), queryTime)

	sums := map[int]int64{3: 3, 6: 15, 12: 15}
	for months, want := range sums {
		res := Resolve(ds, Selection{Year: 2023}.WithWindow(months), queryTime)
		if res.Grouping != GroupYearMonth {
			t.Errorf("%d months: Grouping = %v, want year_month", months, res.Grouping)
		}
		if res.Reference != (civil.Date{Year: 2024, Month: time.June, Day: 14}) {
			t.Errorf("Reference = %v, want yesterday", res.Reference)
		}
		got := Aggregate(res.Rows, res.Grouping, BySupplySource).GrandTotal().IntPart()
		if got != want {
			t.Errorf("%d months: grand total = %d, want %d", months, got, want)
		}
	}

	p := Aggregate(Resolve(ds, Selection{Trailing6: true}, queryTime).Rows, GroupYearMonth, BySupplySource)
	if want := []string{"2023-12", "2024-03", "2024-06", TotalLabel}; !reflect.DeepEqual(p.Columns, want) {
		t.Errorf("Columns = %v, want %v", p.Columns, want)
	}
}

func TestResolve_NarrowestWindowWins(t *testing.T) {
	var rows []row
	start := civil.Date{Year: 2023, Month: time.January, Day: 1}
	for i := 0; i < 560; i += 7 {
		rows = append(rows, row{date: start.AddDays(i).String(), supply: "A", usd: "1"})
	}
	ds := NewDataset(build(t, rows...), queryTime)

	only3 := Resolve(ds, Selection{Trailing3: true}, queryTime)
	for _, sel := range []Selection{
		{Trailing3: true, Trailing6: true},
		{Trailing3: true, Trailing12: true},
		{Trailing3: true, Trailing6: true, Trailing12: true},
	} {
		got := Resolve(ds, sel, queryTime)
		if got.Window != 3 || !reflect.DeepEqual(got.Rows, only3.Rows) {
			t.Errorf("selection %+v resolved to window %d with %d rows, want 3 with %d", sel, got.Window, len(got.Rows), len(only3.Rows))
		}
	}

	if got := Resolve(ds, Selection{Trailing6: true, Trailing12: true}, queryTime).Window; got != 6 {
		t.Errorf("6 and 12 set: window = %d, want 6", got)
	}
}

func TestResolve_WindowClampsMonthEnd(t *testing.T) {
	now := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	res := Resolve(NewDataset(nil, now), Selection{Trailing3: true}, now)
	if want := (civil.Date{Year: 2024, Month: time.February, Day: 29}); res.Since != want {
		t.Errorf("Since = %v, want %v", res.Since, want)
	}
}

func TestQuery_TotalOnly(t *testing.T) {
	ds := NewDataset(build(t,
		row{date: "2022-05-01", supply: "A", client: "X", usd: "10.4"},
		row{date: "2024-01-01", supply: "A", client: "X", usd: "20.4"},
		row{supply: "B", client: "", usd: "5"},
	), queryTime)

	res := Query(ds, Selection{Year: 0}, queryTime)
	if res.Grouping != GroupTotalOnly {
		t.Fatalf("Grouping = %v, want total", res.Grouping)
	}
	for _, p := range []*PivotTable{res.BySupplySource, res.ByClient} {
		if !reflect.DeepEqual(p.Columns, []string{TotalLabel}) {
			t.Errorf("%v Columns = %v, want only Total", p.Dimension, p.Columns)
		}
		if got := p.GrandTotal().String(); got != "35.8" {
			t.Errorf("%v grand total = %s, want 35.8 (rows without a date still count)", p.Dimension, got)
		}
	}
	if got := mustCell(t, res.ByClient, domain.UnknownAttribute, TotalLabel); got != 5 {
		t.Errorf("blank client total = %d, want 5", got)
	}
	if got := res.BySupplySource.Rounded(); !reflect.DeepEqual(got, [][]int64{{31}, {5}, {36}}) {
		t.Errorf("Rounded() = %v", got)
	}
}

func TestAggregate_TotalsAreConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	supplies := []string{"A", "B", "C", "D"}
	clients := []string{"X", "Y", "Z"}

	for iter := 0; iter < 100; iter++ {
		var rows []row
		grand := decimal.Zero
		n := rng.Intn(60) + 1
		for i := 0; i < n; i++ {
			usd := decimal.New(rng.Int63n(200000)-100000, -2)
			grand = grand.Add(usd)
			d := civil.Date{Year: 2024, Month: time.Month(rng.Intn(12) + 1), Day: rng.Intn(28) + 1}
			rows = append(rows, row{
				date:   d.String(),
				supply: supplies[rng.Intn(len(supplies))],
				client: clients[rng.Intn(len(clients))],
				usd:    usd.String(),
			})
		}
		data := build(t, rows...)

		for _, g := range []Grouping{GroupYearMonth, GroupMonthName, GroupTotalOnly} {
			for _, dim := range []Dimension{BySupplySource, ByClient} {
				p := Aggregate(data, g, dim)
				last := len(p.Columns) - 1
				for _, r := range p.Rows {
					sum := decimal.Zero
					for _, c := range r.Cells[:last] {
						sum = sum.Add(c)
					}
					if last > 0 && !sum.Equal(r.Cells[last]) {
						t.Fatalf("%v/%v row %s: Total %s != sum %s", g, dim, r.Label, r.Cells[last], sum)
					}
				}
				if !p.GrandTotal().Equal(grand) {
					t.Fatalf("%v/%v grand total %s != %s", g, dim, p.GrandTotal(), grand)
				}
				rounded := p.Rounded()
				gt := rounded[len(rounded)-1][last]
				if diff := gt - grand.Round(0).IntPart(); diff < -1 || diff > 1 {
					t.Fatalf("%v/%v rounded grand total %d too far from %s", g, dim, gt, grand)
				}
			}
		}
	}
}

func TestDataset_Options(t *testing.T) {
	ds := NewDataset(build(t,
		row{date: "2023-03-01", supply: "B", seller: "Rosa"},
		row{date: "2024-03-01", supply: "A", seller: "Juan"},
		row{date: "2022-03-01", supply: "A", seller: ""},
		row{supply: "C", seller: "Rosa"},
	), queryTime)

	opts := ds.Options()
	if want := []string{All, "Juan", "Rosa"}; !reflect.DeepEqual(opts.Sellers, want) {
		t.Errorf("Sellers = %v, want %v", opts.Sellers, want)
	}
	if want := []string{All, "A", "B", "C"}; !reflect.DeepEqual(opts.SupplySources, want) {
		t.Errorf("SupplySources = %v, want %v", opts.SupplySources, want)
	}
	if want := []string{All, "2024", "2023", "2022"}; !reflect.DeepEqual(opts.Years, want) {
		t.Errorf("Years = %v, want %v", opts.Years, want)
	}
}

func TestNewDataset_IsolatedFromCaller(t *testing.T) {
	rows := build(t, row{date: "2024-01-15", supply: "A", usd: "100"})
	ds := NewDataset(rows, queryTime)
	rows[0].SupplySourceName = "Z"

	res := Resolve(ds, Selection{SupplySource: "A"}, queryTime)
	if res.NoData() {
		t.Error("mutating the caller's slice must not affect the snapshot")
	}
}

func TestParseYear(t *testing.T) {
	for in, want := range map[string]int{"": 0, All: 0, "all": 0, "2024": 2024, " 2023 ": 2023} {
		got, err := ParseYear(in)
		if err != nil || got != want {
			t.Errorf("ParseYear(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := ParseYear("veinte"); err == nil {
		t.Error("expected an error for a non-numeric year")
	}
}
