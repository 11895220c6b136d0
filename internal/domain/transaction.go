package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionKind is the polarity of a transaction.
type TransactionKind string

const (
	// KindSale is a regular sale: no signed amount field is negative.
	KindSale TransactionKind = "sale"
	// KindReturn is a return: at least one signed amount field is negative.
	KindReturn TransactionKind = "return"
)

// RawTransaction is one source record keyed by its source-specific column names.
// Values are kept as text; typing happens during normalization.
type RawTransaction map[string]string

// Transaction represents one normalized sales transaction in the canonical schema.
// Kind is fixed at construction by NewTransaction and is never edited afterwards.
type Transaction struct {
	Date      civil.Date // zero when DateValid is false
	DateValid bool       // false when the source date could not be parsed

	DocumentID       string
	ArticleCode      string
	ArticleName      string
	SupplySourceCode string
	SupplySourceName string
	ClientCode       string
	ClientName       string
	ClientTaxID      string // always text: leading zeros and long ids must survive
	SellerCode       string
	SellerName       string

	Quantity    decimal.NullDecimal
	AmountLocal decimal.NullDecimal
	AmountUSD   decimal.NullDecimal
	Cost        decimal.NullDecimal

	Kind TransactionKind
}

// NewTransaction returns t with Kind derived from its four signed amount fields.
func NewTransaction(t Transaction) Transaction {
	t.Kind = Classify(t.Quantity, t.AmountLocal, t.AmountUSD, t.Cost)
	return t
}

// Classify returns KindReturn iff at least one present amount is strictly negative.
// A missing amount counts as non-negative, so a row lacking fields fails open to KindSale.
func Classify(amounts ...decimal.NullDecimal) TransactionKind {
	for _, a := range amounts {
		if a.Valid && a.Decimal.IsNegative() {
			return KindReturn
		}
	}
	return KindSale
}

// Year returns the calendar year of the transaction date.
func (t Transaction) Year() (int, bool) {
	if !t.DateValid {
		return 0, false
	}
	return t.Date.Year, true
}

// MonthName returns the Spanish month name of the transaction date.
func (t Transaction) MonthName() string {
	if !t.DateValid {
		return ""
	}
	return MonthNameES(t.Date.Month)
}

// YearMonth returns the sortable "YYYY-MM" bucket of the transaction date.
func (t Transaction) YearMonth() string {
	if !t.DateValid {
		return ""
	}
	return FormatYearMonth(t.Date)
}

// ReferenceEntry is one row of the targets table, keyed by supply source.
type ReferenceEntry struct {
	SupplySource string
	Family       string
	Segment      string
	Brand        string
	Manager      string
	Target       decimal.Decimal
}

// EnrichedTransaction is a canonical transaction joined with its reference entry.
type EnrichedTransaction struct {
	Transaction

	Family  string
	Segment string
	Brand   string
	Manager string
	Target  decimal.Decimal
}
