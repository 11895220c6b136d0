package pipeline

// Default artifact locations, matching the file names the business already uses.
const (
	// DefaultReferenceURI is the targets workbook keyed by supply source.
	DefaultReferenceURI = "metas.xlsx"

	// DefaultDatasetURI is the persisted enriched dataset.
	DefaultDatasetURI = "df_sales.csv"

	// DefaultLegacyWorkbookURI is the historical multi-sheet sales export.
	DefaultLegacyWorkbookURI = "ventas_historicas.xlsx"
)
