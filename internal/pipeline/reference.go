package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/sales-tracker/internal/artifacts"
	"github.com/dvloznov/sales-tracker/internal/logger"
	"github.com/dvloznov/sales-tracker/internal/spreadsheet"
)

// LoadReferenceTable reads the targets workbook at uri and parses its first sheet.
// The artifact is read wholesale. A missing artifact yields ErrReferenceNotFound.
func LoadReferenceTable(ctx context.Context, store artifacts.Store, uri string) (*ReferenceTable, error) {
	log := logger.FromContext(ctx)

	data, err := store.Read(ctx, uri)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return nil, fmt.Errorf("LoadReferenceTable: %w: %s", ErrReferenceNotFound, uri)
		}
		return nil, fmt.Errorf("LoadReferenceTable: reading %s: %w", uri, err)
	}

	header, rows, err := spreadsheet.ReadTable(data)
	if err != nil {
		return nil, fmt.Errorf("LoadReferenceTable: %w", err)
	}

	table, err := ParseReferenceTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("LoadReferenceTable: %w", err)
	}

	log.Debug().
		Str("uri", uri).
		Int("entries", table.Len()).
		Msg("Loaded reference table")

	return table, nil
}
