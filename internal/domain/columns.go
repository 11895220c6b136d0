package domain

// Canonical column names. They are the header of the persisted dataset and the
// contract with every downstream consumer.
const (
	ColTransactionDate  = "transaction_date"
	ColDocumentID       = "document_id"
	ColArticleCode      = "article_code"
	ColArticleName      = "article_name"
	ColSupplySourceCode = "supply_source_code"
	ColSupplySourceName = "supply_source_name"
	ColClientCode       = "client_code"
	ColClientName       = "client_name"
	ColClientTaxID      = "client_tax_id"
	ColSellerCode       = "seller_code"
	ColSellerName       = "seller_name"
	ColQuantity         = "quantity"
	ColAmountLocal      = "amount_local_currency"
	ColAmountUSD        = "amount_usd"
	ColCost             = "cost"
	ColTransactionKind  = "transaction_kind"

	ColYear      = "year"
	ColMonthName = "month_name"
	ColYearMonth = "year_month"

	ColFamily  = "family"
	ColSegment = "segment"
	ColBrand   = "brand"
	ColManager = "manager"
	ColTarget  = "target"
)

// CanonicalColumns lists the source-mapped canonical fields in dataset order.
var CanonicalColumns = []string{
	ColTransactionDate,
	ColDocumentID,
	ColArticleCode,
	ColArticleName,
	ColSupplySourceCode,
	ColSupplySourceName,
	ColClientCode,
	ColClientName,
	ColClientTaxID,
	ColSellerCode,
	ColSellerName,
	ColQuantity,
	ColAmountLocal,
	ColAmountUSD,
	ColCost,
}

// EnrichedColumns is the full header of the persisted dataset.
var EnrichedColumns = append(append([]string{}, CanonicalColumns...),
	ColTransactionKind,
	ColYear,
	ColMonthName,
	ColYearMonth,
	ColFamily,
	ColSegment,
	ColBrand,
	ColManager,
	ColTarget,
)

// UnknownAttribute fills categorical reference attributes with no match.
const UnknownAttribute = "Unknown"
