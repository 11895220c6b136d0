package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SourceFormat identifies the schema a batch of raw transactions was produced in.
// The caller decides the format; it is never guessed from the data.
type SourceFormat int

const (
	// FormatAPI is the camelCase JSON export of the sales API.
	FormatAPI SourceFormat = iota + 1
	// FormatLegacySpreadsheet is the historical multi-sheet workbook with Spanish headers.
	FormatLegacySpreadsheet
)

func (f SourceFormat) String() string {
	switch f {
	case FormatAPI:
		return "api"
	case FormatLegacySpreadsheet:
		return "legacy_spreadsheet"
	default:
		return fmt.Sprintf("SourceFormat(%d)", int(f))
	}
}

// apiFieldMap maps every API column to its canonical column.
var apiFieldMap = map[string]string{
	"dateDocument": domain.ColTransactionDate,
	"document":     domain.ColDocumentID,
	"codeArticle":  domain.ColArticleCode,
	"nameArticle":  domain.ColArticleName,
	"codeSupply":   domain.ColSupplySourceCode,
	"nameSupply":   domain.ColSupplySourceName,
	"codeClient":   domain.ColClientCode,
	"nameClient":   domain.ColClientName,
	"rucClient":    domain.ColClientTaxID,
	"codeSeller":   domain.ColSellerCode,
	"nameSeller":   domain.ColSellerName,
	"quantity":     domain.ColQuantity,
	"amountSOL":    domain.ColAmountLocal,
	"amountUSD":    domain.ColAmountUSD,
	"cost":         domain.ColCost,
}

// legacyFieldMap maps the workbook headers to canonical columns. CIA, Rubro,
// Departamento and Cobrador have no canonical counterpart and are dropped.
var legacyFieldMap = map[string]string{
	"Fecha":                domain.ColTransactionDate,
	"Documento":            domain.ColDocumentID,
	"Artículo":             domain.ColArticleCode,
	"Nombre de Artículo":   domain.ColArticleName,
	"Fuente de Suministro": domain.ColSupplySourceName,
	"Cliente":              domain.ColClientCode,
	"Nombre Cliente":       domain.ColClientName,
	"Nombre Vendedor":      domain.ColSellerName,
	"Cantidad":             domain.ColQuantity,
	"Venta S/.":            domain.ColAmountLocal,
	"Venta $":              domain.ColAmountUSD,
	"Costo":                domain.ColCost,
}

// FieldMap returns a copy of the source-to-canonical column mapping of f.
func (f SourceFormat) FieldMap() (map[string]string, error) {
	var src map[string]string
	switch f {
	case FormatAPI:
		src = apiFieldMap
	case FormatLegacySpreadsheet:
		src = legacyFieldMap
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}

// NormalizeResult is the output of one normalization pass.
type NormalizeResult struct {
	Format       SourceFormat
	Transactions []domain.Transaction

	// Columns holds the canonical columns that at least one raw record carried.
	Columns map[string]bool

	// InvalidDates counts rows whose date was missing or unparseable. Those rows
	// are kept with DateValid=false.
	InvalidDates int

	// MissingAmounts counts rows where at least one of the four signed amount
	// fields was absent or unparseable and therefore treated as non-negative.
	MissingAmounts int
}

// HasColumn reports whether the source batch carried the canonical column.
func (r *NormalizeResult) HasColumn(col string) bool {
	return r != nil && r.Columns[col]
}

// Normalize maps a batch of raw records in the given format to canonical transactions.
// It never drops rows; data-quality problems are counted in the result.
func Normalize(format SourceFormat, raw []domain.RawTransaction) (*NormalizeResult, error) {
	return NormalizeWithHeader(format, nil, raw)
}

// NormalizeWithHeader is Normalize for a source with a header row. Mapped
// header columns are recorded in Columns even when raw is empty.
func NormalizeWithHeader(format SourceFormat, header []string, raw []domain.RawTransaction) (*NormalizeResult, error) {
	fieldMap, err := format.FieldMap()
	if err != nil {
		return nil, fmt.Errorf("Normalize: %w", err)
	}

	res := &NormalizeResult{
		Format:       format,
		Transactions: make([]domain.Transaction, 0, len(raw)),
		Columns:      make(map[string]bool),
	}
	for _, h := range header {
		if col, ok := fieldMap[strings.TrimSpace(h)]; ok {
			res.Columns[col] = true
		}
	}

	for _, rec := range raw {
		// Rename to canonical columns; unmapped source columns are dropped here.
		canon := make(map[string]string, len(fieldMap))
		for srcCol, val := range rec {
			col, ok := fieldMap[srcCol]
			if !ok {
				continue
			}
			canon[col] = strings.TrimSpace(val)
			res.Columns[col] = true
		}

		tx, dateOK, amountsOK := buildTransaction(format, canon)
		if !dateOK {
			res.InvalidDates++
		}
		if !amountsOK {
			res.MissingAmounts++
		}
		res.Transactions = append(res.Transactions, tx)
	}

	return res, nil
}

func buildTransaction(format SourceFormat, canon map[string]string) (tx domain.Transaction, dateOK, amountsOK bool) {
	parse := ParseDate
	if format == FormatLegacySpreadsheet {
		parse = parseWorkbookDate
	}
	date, dateOK := parse(canon[domain.ColTransactionDate])

	amountsOK = true
	amount := func(col string) decimal.NullDecimal {
		v, ok := parseAmount(canon[col])
		if !ok {
			amountsOK = false
		}
		return v
	}

	tx = domain.NewTransaction(domain.Transaction{
		Date:             date,
		DateValid:        dateOK,
		DocumentID:       canon[domain.ColDocumentID],
		ArticleCode:      canon[domain.ColArticleCode],
		ArticleName:      canon[domain.ColArticleName],
		SupplySourceCode: canon[domain.ColSupplySourceCode],
		SupplySourceName: canon[domain.ColSupplySourceName],
		ClientCode:       canon[domain.ColClientCode],
		ClientName:       canon[domain.ColClientName],
		ClientTaxID:      canon[domain.ColClientTaxID],
		SellerCode:       canon[domain.ColSellerCode],
		SellerName:       canon[domain.ColSellerName],
		Quantity:         amount(domain.ColQuantity),
		AmountLocal:      amount(domain.ColAmountLocal),
		AmountUSD:        amount(domain.ColAmountUSD),
		Cost:             amount(domain.ColCost),
	})
	return tx, dateOK, amountsOK
}

// parseAmount parses a signed numeric cell. Blank or malformed values yield an
// invalid NullDecimal and ok=false.
func parseAmount(s string) (decimal.NullDecimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return decimal.NullDecimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, true
}

// dateLayouts are tried in order by ParseDate. Slashed and dashed dates are
// day-first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
}

// ParseDate permissively parses a transaction date. It accepts ISO dates and
// timestamps, compact YYYYMMDD and day-first dates with a four-digit year.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// parseWorkbookDate also accepts Excel serial day numbers, which is how the
// historical workbook stores dates when read without cell formatting.
func parseWorkbookDate(s string) (civil.Date, bool) {
	if d, ok := ParseDate(s); ok {
		return d, true
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || serial <= 0 || serial >= 2958466 {
		return civil.Date{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}
