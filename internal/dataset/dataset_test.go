package dataset

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func sampleRows() []domain.EnrichedTransaction {
	return []domain.EnrichedTransaction{
		{
			Transaction: domain.NewTransaction(domain.Transaction{
				Date:             civil.Date{Year: 2024, Month: time.February, Day: 10},
				DateValid:        true,
				DocumentID:       "F001-7",
				SupplySourceName: "ACME, S.A.",
				ClientName:       "Ferreteria \"El Sol\"",
				ClientTaxID:      "0020100047218",
				Quantity:         amount("-2"),
				AmountLocal:      amount("-148.35"),
				AmountUSD:        amount("-40.1234"),
				Cost:             amount("-24"),
			}),
			Family:  "Cables",
			Segment: "Industrial",
			Brand:   "Acme",
			Manager: "Luis",
			Target:  decimal.RequireFromString("1500.5"),
		},
		{
			Transaction: domain.NewTransaction(domain.Transaction{
				SupplySourceName: "B",
				AmountUSD:        amount("12"),
			}),
			Family:  domain.UnknownAttribute,
			Segment: domain.UnknownAttribute,
			Brand:   domain.UnknownAttribute,
			Manager: domain.UnknownAttribute,
			Target:  decimal.Zero,
		},
	}
}

func TestWriteRead_PreservesRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleRows()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if header != strings.Join(domain.EnrichedColumns, ",") {
		t.Errorf("header = %q", header)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}

	first := got[0]
	if first.ClientTaxID != "0020100047218" {
		t.Errorf("ClientTaxID = %q", first.ClientTaxID)
	}
	if first.SupplySourceName != "ACME, S.A." || first.ClientName != "Ferreteria \"El Sol\"" {
		t.Errorf("quoted fields = %q, %q", first.SupplySourceName, first.ClientName)
	}
	if first.Kind != domain.KindReturn || first.MonthName() != "Febrero" || first.YearMonth() != "2024-02" {
		t.Errorf("derived fields = %q %q %q", first.Kind, first.MonthName(), first.YearMonth())
	}
	if !first.AmountUSD.Decimal.Equal(decimal.RequireFromString("-40.1234")) {
		t.Errorf("AmountUSD = %s, full precision expected", first.AmountUSD.Decimal)
	}

	second := got[1]
	if second.DateValid {
		t.Error("missing date must stay invalid")
	}
	if second.Quantity.Valid {
		t.Error("missing quantity must stay missing")
	}
	if second.Manager != domain.UnknownAttribute || !second.Target.IsZero() {
		t.Errorf("enrichment = %q, %s", second.Manager, second.Target)
	}
}

func TestRead_RecomputesDerivedColumns(t *testing.T) {
	in := "amount_usd,transaction_date,supply_source_name,transaction_kind,year,month_name\n" +
		"5,2023-12-31,A,return,1999,Mayo\n"

	rows, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	r := rows[0]
	if y, _ := r.Year(); y != 2023 || r.MonthName() != "Diciembre" || r.Kind != domain.KindSale {
		t.Errorf("derived = %d %q %q; file values must be ignored", y, r.MonthName(), r.Kind)
	}
}

func TestRead_MissingRequiredColumn(t *testing.T) {
	_, err := Read(strings.NewReader("transaction_date,amount_usd\n2024-01-01,1\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Read() error = %v, want ErrMissingColumn", err)
	}

	_, err = Read(strings.NewReader(""))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Read(empty) error = %v, want ErrMissingColumn", err)
	}
}

func TestSaveLoad_LocalStore(t *testing.T) {
	ctx := context.Background()
	store := artifacts.NewLocalStore()
	uri := filepath.Join(t.TempDir(), "out", "ventas.csv")

	if err := Save(ctx, store, uri, sampleRows()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rows, err := Load(ctx, store, uri)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}

	_, err = Load(ctx, store, filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, artifacts.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}
