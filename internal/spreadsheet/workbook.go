// Package spreadsheet reads xlsx workbooks: the historical sales export and the targets table.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/sales-tracker/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ErrEmptyWorkbook is returned when the first sheet has no header row.
var ErrEmptyWorkbook = errors.New("workbook has no header row")

// rawCells keeps dates as Excel serial numbers and numbers unformatted, so
// values do not depend on the cell number format chosen by whoever edited the file.
var rawCells = excelize.Options{RawCellValue: true}

// ReadTable returns the header and data rows of the first sheet.
func ReadTable(data []byte) (header []string, rows [][]string, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("ReadTable: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("ReadTable: %w", ErrEmptyWorkbook)
	}

	all, err := f.GetRows(sheets[0], rawCells)
	if err != nil {
		return nil, nil, fmt.Errorf("ReadTable: read sheet %q: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("ReadTable: %w", ErrEmptyWorkbook)
	}
	return trimCells(all[0]), dropBlankRows(all[1:]), nil
}

// ReadLegacyWorkbook reads the historical sales export: one sheet per period.
// The first sheet carries the header row; every later sheet is headerless and is
// read positionally under that header. The header is returned even when no sheet
// has data rows.
//
// The positional contract is not verified. A later sheet with reordered columns
// is mis-mapped silently.
func ReadLegacyWorkbook(r io.Reader) (header []string, out []domain.RawTransaction, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("ReadLegacyWorkbook: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("ReadLegacyWorkbook: %w", ErrEmptyWorkbook)
	}

	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet, rawCells)
		if err != nil {
			return nil, nil, fmt.Errorf("ReadLegacyWorkbook: read sheet %q: %w", sheet, err)
		}
		if i == 0 {
			if len(rows) == 0 {
				return nil, nil, fmt.Errorf("ReadLegacyWorkbook: sheet %q: %w", sheet, ErrEmptyWorkbook)
			}
			header = trimCells(rows[0])
			rows = rows[1:]
		}
		for _, row := range dropBlankRows(rows) {
			out = append(out, zipRow(header, row))
		}
	}
	return header, out, nil
}

func zipRow(header, row []string) domain.RawTransaction {
	rec := make(domain.RawTransaction, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i < len(row) {
			rec[col] = row[i]
		} else {
			rec[col] = ""
		}
	}
	return rec
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}
